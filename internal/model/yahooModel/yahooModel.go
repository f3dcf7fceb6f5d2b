package yahooModel

type RawChart struct {
	Chart Chart `json:"chart"`
}

type Chart struct {
	Result []ChartResult `json:"result"`
	Error  *ChartError   `json:"error"`
}

type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type ChartResult struct {
	Meta       ChartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators Indicators `json:"indicators"`
}

type ChartMeta struct {
	Currency string `json:"currency"`
	Symbol   string `json:"symbol"`
}

type Indicators struct {
	Quote []Quote `json:"quote"`
}

// Quote keeps nulls from the series, yahoo leaves gaps for untraded intervals.
type Quote struct {
	Close []*float64 `json:"close"`
}
