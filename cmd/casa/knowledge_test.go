package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/casa/internal/knowledge"
	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/testutil"
)

func TestAskFAQ(t *testing.T) {
	matcher := knowledge.NewMatcher(knowledge.DefaultCorpus())

	var out bytes.Buffer
	require.NoError(t, askFAQ(&out, matcher, "posso deduzir despesas medicas no imposto de renda?"))
	assert.Contains(t, out.String(), "Posso deduzir despesas médicas")

	out.Reset()
	require.NoError(t, askFAQ(&out, matcher, "receita de bolo de chocolate"))
	assert.Contains(t, out.String(), "Nenhuma pergunta parecida")
}

func TestPurgeKnowledge(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Storage.SaveFact(ctx, &model.KnowledgeFact{
		ID:           "old",
		Domain:       "ir",
		QuestionText: "prazo do imposto de renda",
		QuestionHash: knowledge.QuestionHash("prazo do imposto de renda"),
		AnswerText:   "Até 29 de maio.",
		CreatedAt:    time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil:   time.Date(2020, time.February, 1, 0, 0, 0, 0, time.UTC),
	}))

	var out bytes.Buffer
	require.NoError(t, purgeKnowledge(ctx, &out, db.Storage))
	assert.Contains(t, out.String(), "1 respostas expiradas")
}
