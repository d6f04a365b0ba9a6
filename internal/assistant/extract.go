package assistant

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/textnorm"
)

var (
	currencyPattern = regexp.MustCompile(`(?i)r\$\s*(\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?|\d+(?:[.,]\d{1,2})?)`)
	reaisPattern    = regexp.MustCompile(`(?i)(\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?|\d+(?:,\d{1,2})?)\s*reais\b`)
	centsPattern    = regexp.MustCompile(`\b(\d{1,3}(?:\.\d{3})+,\d{1,2}|\d+,\d{1,2})\b`)
	thousandsOnly   = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	datePattern     = regexp.MustCompile(`\b(\d{2})/(\d{2})/(\d{4})\b`)
	platePattern    = regexp.MustCompile(`\b([A-Z]{3})-?(\d[A-Z0-9]\d{2})\b`)
)

// parseAmount finds the first money amount in text. It accepts "R$ 195,23",
// "1.200,00 reais" and bare values with cents such as "350,00".
func parseAmount(text string) (decimal.Decimal, bool) {
	for _, re := range []*regexp.Regexp{currencyPattern, reaisPattern, centsPattern} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if d, ok := parseBRL(m[1]); ok && d.IsPositive() {
			return d, true
		}
	}
	return decimal.Zero, false
}

// parseBRL converts a pt-BR formatted number to a decimal.
func parseBRL(s string) (decimal.Decimal, bool) {
	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case thousandsOnly.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parseDate finds the first dd/mm/yyyy date in text.
func parseDate(text string, loc *time.Location) (*time.Time, bool) {
	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	t, err := time.ParseInLocation("02/01/2006", m[1]+"/"+m[2]+"/"+m[3], loc)
	if err != nil {
		return nil, false
	}
	return &t, true
}

// parsePlate finds a Brazilian licence plate in either the old or the Mercosul format.
func parsePlate(text string) string {
	m := platePattern.FindStringSubmatch(strings.ToUpper(text))
	if m == nil {
		return ""
	}
	return m[1] + m[2]
}

var deductionKeywords = []struct {
	category model.DeductionCategory
	terms    []string
}{
	{model.DeductionHealth, []string{"medic", "consulta", "dentista", "plano de saude", "hospital", "exame", "psicolog", "fisioterap", "saude"}},
	{model.DeductionEducation, []string{"escola", "faculdade", "mensalidade escolar", "universidade", "educacao", "creche"}},
	{model.DeductionPension, []string{"previdencia", "pgbl"}},
	{model.DeductionDependent, []string{"dependente"}},
}

// deductionCategory guesses the deduction bucket from keywords.
func deductionCategory(text string) (model.DeductionCategory, bool) {
	folded := textnorm.Fold(text)
	for _, k := range deductionKeywords {
		for _, term := range k.terms {
			if strings.Contains(folded, term) {
				return k.category, true
			}
		}
	}
	return "", false
}

var deductionLabels = map[model.DeductionCategory]string{
	model.DeductionHealth:    "Despesa de saúde",
	model.DeductionEducation: "Despesa de educação",
	model.DeductionPension:   "Previdência privada",
	model.DeductionDependent: "Despesa com dependente",
	model.DeductionOther:     "Despesa dedutível",
}

var defenseTerms = []string{"recorrer", "recurso", "defesa", "contestar", "defender"}

func wantsDefense(text string) bool {
	folded := textnorm.Fold(text)
	for _, term := range defenseTerms {
		if strings.Contains(folded, term) {
			return true
		}
	}
	return false
}
