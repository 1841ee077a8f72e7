package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/icodeforyou/pvpc-go/convert"
	"github.com/icodeforyou/pvpc-go/pricesync"
	"github.com/icodeforyou/pvpc-go/types"
	"github.com/shopspring/decimal"
)

type output struct {
	w    io.Writer
	json bool
}

func newOutput(w io.Writer, format string) *output {
	return &output{w: w, json: strings.EqualFold(format, "json")}
}

func (o *output) encode(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func price(d decimal.Decimal) string {
	return convert.RoundDecimal(d, 5).StringFixed(5)
}

func (o *output) Period(pps []types.PricePoint) error {
	if o.json {
		if pps == nil {
			pps = []types.PricePoint{}
		}
		return o.encode(pps)
	}
	if len(pps) == 0 {
		_, err := fmt.Fprintln(o.w, "no prices")
		return err
	}
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	for _, pp := range pps {
		fmt.Fprintf(tw, "%s\t%02d:00\t%s\n", pp.When.Date, pp.When.Hour, price(pp.Price))
	}
	fmt.Fprintf(tw, "average\t\t%s\n", price(types.Period(pps).Average()))
	return tw.Flush()
}

func (o *output) Periods(periods ...types.Period) error {
	if o.json {
		out := make([]types.Period, 0, len(periods))
		for _, p := range periods {
			if !p.IsEmpty() {
				out = append(out, p)
			}
		}
		return o.encode(out)
	}
	for _, p := range periods {
		if p.IsEmpty() {
			continue
		}
		fmt.Fprintln(o.w, span(p))
	}
	return nil
}

// span is "03:00-06:00 0.05000" for the hours 3, 4 and 5.
func span(p types.Period) string {
	return fmt.Sprintf("%02d:00-%02d:00 %s", p.Start().Hour, (int(p.End().Hour)+1)%24, price(p.Average()))
}

func (o *output) DailyInfo(info types.DailyPriceInfo) error {
	if o.json {
		return o.encode(info)
	}
	fmt.Fprintf(o.w, "rating:             %s\n", info.DayRating)
	fmt.Fprintf(o.w, "average:            %s\n", price(types.Period(info.Prices).Average()))
	fmt.Fprintf(o.w, "thirty day average: %s\n", price(info.ThirtyDayAverage))
	fmt.Fprintln(o.w, "cheap periods:")
	for _, p := range info.CheapPeriods {
		fmt.Fprintf(o.w, "  %s\n", span(p))
	}
	fmt.Fprintln(o.w, "expensive periods:")
	for _, p := range info.ExpensivePeriods {
		fmt.Fprintf(o.w, "  %s\n", span(p))
	}
	return nil
}

func (o *output) Averages(averages []types.DailyAverage) error {
	if o.json {
		return o.encode(averages)
	}
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	for _, a := range averages {
		fmt.Fprintf(tw, "%s\t%s\n", a.Date, price(a.Average))
	}
	return tw.Flush()
}

func (o *output) SyncResult(res pricesync.Result) error {
	if o.json {
		var msg string
		if res.Err != nil {
			msg = res.Err.Error()
		}
		return o.encode(struct {
			Date    string `json:"date"`
			Outcome string `json:"outcome"`
			Error   string `json:"error,omitempty"`
		}{res.Date, res.Outcome.String(), msg})
	}
	if res.Err != nil {
		_, err := fmt.Fprintf(o.w, "%s %s: %v\n", res.Date, res.Outcome, res.Err)
		return err
	}
	_, err := fmt.Fprintf(o.w, "%s %s\n", res.Date, res.Outcome)
	return err
}
