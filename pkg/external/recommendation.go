package external

import (
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dpr-plan-engine/internal/domain"
)

// rankFields are the names the quote API has used for the recommendation rank.
var rankFields = []string{"RecommendationRank", "Recommended", "Rank"}

// DecodeQuoteSet parses a quote response. Only PlanName is required per plan;
// premiums and ranks may arrive as numbers or strings.
func DecodeQuoteSet(body []byte) (*domain.QuoteSet, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("response is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	quotes := root.Get("PlanQuotes")
	if !quotes.IsArray() {
		return nil, errors.New("response has no PlanQuotes array")
	}

	set := &domain.QuoteSet{QuoteSetID: root.Get("QuoteSetId").String()}
	quotes.ForEach(func(_, q gjson.Result) bool {
		name := strings.TrimSpace(q.Get("PlanName").String())
		if name == "" {
			return true
		}
		quote := domain.PlanQuote{
			PlanName:           domain.PlanID(name),
			Premium:            q.Get("Premium").Float(),
			ConfirmationNumber: q.Get("ConfirmationNumber").String(),
			RecommendationRank: ParseRank(q),
		}
		q.Get("QuoteOptions").ForEach(func(_, opt gjson.Result) bool {
			quote.QuoteOptions = append(quote.QuoteOptions, domain.QuoteOption{
				Name:    opt.Get("Name").String(),
				Premium: opt.Get("Premium").Float(),
			})
			return true
		})
		set.PlanQuotes = append(set.PlanQuotes, quote)
		return true
	})
	return set, nil
}

// ParseRank reads a plan's recommendation rank. Anything outside 1..3 is 0.
func ParseRank(q gjson.Result) int {
	for _, field := range rankFields {
		r := q.Get(field)
		if !r.Exists() {
			continue
		}

		var n int
		switch r.Type {
		case gjson.Number:
			n = int(r.Int())
		case gjson.String:
			v, err := strconv.Atoi(strings.TrimSpace(r.Str))
			if err != nil {
				return 0
			}
			n = v
		default:
			return 0
		}
		if n < 1 || n > domain.TopN {
			return 0
		}
		return n
	}
	return 0
}
