package classify

import (
	"regexp"
	"strings"
	"time"
)

var monthTokens = []struct {
	token string
	month time.Month
}{
	{"januar", time.January}, {"jan", time.January},
	{"februar", time.February}, {"feb", time.February},
	{"märz", time.March}, {"marz", time.March}, {"mrz", time.March},
	{"april", time.April}, {"apr", time.April},
	{"mai", time.May},
	{"juni", time.June}, {"jun", time.June},
	{"juli", time.July}, {"jul", time.July},
	{"august", time.August}, {"aug", time.August},
	{"september", time.September}, {"sept", time.September}, {"sep", time.September},
	{"oktober", time.October}, {"okt", time.October},
	{"november", time.November}, {"nov", time.November},
	{"dezember", time.December}, {"dez", time.December},
}

var (
	monthByToken   = map[string]time.Month{}
	monthNameRegex *regexp.Regexp
)

func init() {
	alternatives := make([]string, 0, len(monthTokens))
	for _, mt := range monthTokens {
		monthByToken[mt.token] = mt.month
		alternatives = append(alternatives, regexp.QuoteMeta(mt.token))
	}
	monthNameRegex = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(` + strings.Join(alternatives, "|") + `)(?:$|[^\p{L}\p{N}_])`)
}

// MonthOverride returns the month explicitly named in text ("Miete März",
// "NK Aug"), or zero when none is named. The first whole-word occurrence wins.
func MonthOverride(text string) time.Month {
	m := monthNameRegex.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	return monthByToken[strings.ToLower(m[1])]
}
