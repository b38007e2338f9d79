package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"dcf_engine/pkg/models"
)

// ==================== Yahoo Finance Client ====================

const (
	defaultQuoteHost = "https://query2.finance.yahoo.com"
	defaultChartHost = "https://query1.finance.yahoo.com"
	// Any request here seeds the session cookie the crumb is issued against.
	defaultCrumbSeed = "https://fc.yahoo.com"

	quoteSummaryURL = "%s/v10/finance/quoteSummary/%s?modules=%s&crumb=%s"
	getCrumbURL     = "%s/v1/test/getcrumb"
	chartURL        = "%s/v8/finance/chart/%s?range=%s&interval=1d"

	// Yahoo rejects requests that do not look like a browser.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	statementModules = "incomeStatementHistory,balanceSheetHistory,cashflowStatementHistory,price,summaryDetail,defaultKeyStatistics,financialData"
	peerModules      = "price,summaryDetail,defaultKeyStatistics,financialData"

	// Symbol whose quote is the 10-year treasury yield in percent.
	riskFreeProxy = "^TNX"

	crumbTTL           = 30 * time.Minute
	defaultTimeout     = 30 * time.Second
	defaultRequestRate = 4 // requests per second
)

// yfVal is Yahoo's number envelope: {"raw": 25460000000, "fmt": "25.46B"}.
// Raw is a pointer so an absent field ({}) stays distinguishable from zero.
type yfVal struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

func (v yfVal) ok() bool {
	return v.Raw != nil && !math.IsNaN(*v.Raw)
}

func (v yfVal) value() float64 {
	if !v.ok() {
		return math.NaN()
	}
	return *v.Raw
}

// date returns the ISO date for period-end fields. Yahoo sends both the
// epoch ("raw": 1703980800) and the formatted date ("fmt": "2023-12-31").
func (v yfVal) date() string {
	if v.Fmt != "" {
		return v.Fmt
	}
	if v.Raw == nil {
		return ""
	}
	return time.Unix(int64(*v.Raw), 0).UTC().Format("2006-01-02")
}

// ==================== Response Types ====================

type yahooAPIError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []quoteSummaryResult `json:"result"`
		Error  *yahooAPIError       `json:"error"`
	} `json:"quoteSummary"`
}

type quoteSummaryResult struct {
	IncomeStatementHistory *struct {
		Statements []yfIncomeRow `json:"incomeStatementHistory"`
	} `json:"incomeStatementHistory"`
	BalanceSheetHistory *struct {
		Statements []yfBalanceRow `json:"balanceSheetStatements"`
	} `json:"balanceSheetHistory"`
	CashflowStatementHistory *struct {
		Statements []yfCashFlowRow `json:"cashflowStatements"`
	} `json:"cashflowStatementHistory"`
	Price                *yfPrice         `json:"price"`
	SummaryDetail        *yfSummaryDetail `json:"summaryDetail"`
	DefaultKeyStatistics *yfKeyStats      `json:"defaultKeyStatistics"`
	FinancialData        *yfFinancialData `json:"financialData"`
}

type yfIncomeRow struct {
	EndDate          yfVal `json:"endDate"`
	TotalRevenue     yfVal `json:"totalRevenue"`
	CostOfRevenue    yfVal `json:"costOfRevenue"`
	GrossProfit      yfVal `json:"grossProfit"`
	OperatingIncome  yfVal `json:"operatingIncome"`
	EBIT             yfVal `json:"ebit"`
	InterestExpense  yfVal `json:"interestExpense"`
	IncomeBeforeTax  yfVal `json:"incomeBeforeTax"`
	IncomeTaxExpense yfVal `json:"incomeTaxExpense"`
	NetIncome        yfVal `json:"netIncome"`
}

type yfBalanceRow struct {
	EndDate                 yfVal `json:"endDate"`
	TotalAssets             yfVal `json:"totalAssets"`
	TotalCurrentAssets      yfVal `json:"totalCurrentAssets"`
	Cash                    yfVal `json:"cash"`
	NetReceivables          yfVal `json:"netReceivables"`
	Inventory               yfVal `json:"inventory"`
	TotalLiab               yfVal `json:"totalLiab"`
	TotalCurrentLiabilities yfVal `json:"totalCurrentLiabilities"`
	ShortLongTermDebt       yfVal `json:"shortLongTermDebt"`
	LongTermDebt            yfVal `json:"longTermDebt"`
	TotalStockholderEquity  yfVal `json:"totalStockholderEquity"`
}

type yfCashFlowRow struct {
	EndDate                               yfVal `json:"endDate"`
	TotalCashFromOperatingActivities      yfVal `json:"totalCashFromOperatingActivities"`
	TotalCashflowsFromInvestingActivities yfVal `json:"totalCashflowsFromInvestingActivities"`
	TotalCashFromFinancingActivities      yfVal `json:"totalCashFromFinancingActivities"`
	CapitalExpenditures                   yfVal `json:"capitalExpenditures"`
	Depreciation                          yfVal `json:"depreciation"`
	ChangeInCash                          yfVal `json:"changeInCash"`
}

type yfPrice struct {
	Symbol             string `json:"symbol"`
	ShortName          string `json:"shortName"`
	LongName           string `json:"longName"`
	Currency           string `json:"currency"`
	RegularMarketPrice yfVal  `json:"regularMarketPrice"`
	MarketCap          yfVal  `json:"marketCap"`
}

type yfSummaryDetail struct {
	Beta             yfVal `json:"beta"`
	TrailingPE       yfVal `json:"trailingPE"`
	DividendYield    yfVal `json:"dividendYield"`
	FiftyTwoWeekHigh yfVal `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow  yfVal `json:"fiftyTwoWeekLow"`
	MarketCap        yfVal `json:"marketCap"`
}

type yfKeyStats struct {
	Beta               yfVal `json:"beta"`
	SharesOutstanding  yfVal `json:"sharesOutstanding"`
	EnterpriseValue    yfVal `json:"enterpriseValue"`
	EnterpriseToEbitda yfVal `json:"enterpriseToEbitda"`
	PriceToBook        yfVal `json:"priceToBook"`
}

type yfFinancialData struct {
	CurrentPrice yfVal `json:"currentPrice"`
	TotalRevenue yfVal `json:"totalRevenue"`
	EBITDA       yfVal `json:"ebitda"`
	TotalDebt    yfVal `json:"totalDebt"`
	TotalCash    yfVal `json:"totalCash"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
			} `json:"meta"`
		} `json:"result"`
		Error *yahooAPIError `json:"error"`
	} `json:"chart"`
}

// ==================== Client ====================

// YahooClient fetches statements, quotes and peer multiples from the Yahoo
// Finance JSON API. quoteSummary requests need a crumb tied to a session
// cookie; the client maintains both and refreshes them when Yahoo rejects
// a stale pair.
type YahooClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	seedURL    string
	quoteHost  string
	chartHost  string

	mu        sync.Mutex
	crumb     string
	crumbTime time.Time
}

// YahooOption configures a YahooClient.
type YahooOption func(*YahooClient)

// WithHTTPClient overrides the default HTTP client. The replacement should
// carry a cookie jar: Yahoo validates the crumb against a session cookie.
func WithHTTPClient(hc *http.Client) YahooOption {
	return func(c *YahooClient) {
		c.httpClient = hc
	}
}

// WithBaseURL points every endpoint at one host. Tests use this to aim the
// client at an httptest server.
func WithBaseURL(base string) YahooOption {
	return func(c *YahooClient) {
		c.seedURL = base
		c.quoteHost = base
		c.chartHost = base
	}
}

// WithRateLimit sets the request budget in requests per second.
func WithRateLimit(rps int) YahooOption {
	return func(c *YahooClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	}
}

func NewYahooClient(opts ...YahooOption) *YahooClient {
	jar, _ := cookiejar.New(nil)
	c := &YahooClient{
		httpClient: &http.Client{Timeout: defaultTimeout, Jar: jar},
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestRate), defaultRequestRate),
		seedURL:    defaultCrumbSeed,
		quoteHost:  defaultQuoteHost,
		chartHost:  defaultChartHost,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ DataSource = (*YahooClient)(nil)

// Collect fetches the full statement history plus the market and macro
// snapshot for one ticker.
func (c *YahooClient) Collect(ctx context.Context, ticker string) (*Bundle, error) {
	res, err := c.quoteSummary(ctx, ticker, statementModules)
	if err != nil {
		return nil, fmt.Errorf("failed to collect %s: %w", ticker, err)
	}

	stmts := statementsFromResult(res)
	if stmts.Income.IsEmpty() {
		return nil, fmt.Errorf("no income statement history returned for %s", ticker)
	}

	market := marketFromResult(ticker, res)
	if market.CurrentPrice == nil {
		// quoteSummary omits the quote for some exchanges; the chart
		// endpoint still carries it.
		if px, chartErr := c.latestClose(ctx, ticker); chartErr == nil {
			market.CurrentPrice = models.Ptr(px)
		}
	}

	macro, err := c.FetchMacro(ctx)
	if err != nil {
		// Leave the macro snapshot empty; downstream falls back to the
		// configured defaults.
		macro = &models.MacroData{}
	}

	return &Bundle{
		Ticker:     ticker,
		FetchedAt:  time.Now().UTC(),
		Statements: stmts,
		Market:     market,
		Macro:      macro,
	}, nil
}

// CollectPeers fetches market data and multiples for each peer ticker.
// A failed fetch is recorded on the peer's record instead of aborting.
func (c *YahooClient) CollectPeers(ctx context.Context, tickers []string) []models.PeerRecord {
	peers := make([]models.PeerRecord, 0, len(tickers))
	for _, t := range tickers {
		peers = append(peers, c.fetchPeer(ctx, t))
	}
	return peers
}

// FetchMacro reads the 10-year treasury yield as the risk-free rate. There
// is no public feed for the equity risk premium, so only the yield is set;
// callers fall back to configured defaults for the rest.
func (c *YahooClient) FetchMacro(ctx context.Context) (*models.MacroData, error) {
	yield, err := c.latestClose(ctx, riskFreeProxy)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s yield: %w", riskFreeProxy, err)
	}
	// ^TNX quotes the yield in percent (4.25 means 4.25%).
	return &models.MacroData{RiskFreeRate: models.Ptr(yield / 100)}, nil
}

func (c *YahooClient) fetchPeer(ctx context.Context, ticker string) models.PeerRecord {
	rec := models.PeerRecord{Ticker: ticker}
	res, err := c.quoteSummary(ctx, ticker, peerModules)
	if err != nil {
		rec.Err = err.Error()
		return rec
	}

	if p := res.Price; p != nil {
		rec.Name = peerName(p)
		setIf(&rec.CurrentPrice, p.RegularMarketPrice)
		setIf(&rec.MarketCap, p.MarketCap)
	}
	if d := res.SummaryDetail; d != nil {
		setIf(&rec.Beta, d.Beta)
		setIf(&rec.PERatio, d.TrailingPE)
		if rec.MarketCap == nil {
			setIf(&rec.MarketCap, d.MarketCap)
		}
	}
	if k := res.DefaultKeyStatistics; k != nil {
		setIf(&rec.EVEBITDA, k.EnterpriseToEbitda)
		setIf(&rec.PBRatio, k.PriceToBook)
		if rec.Beta == nil {
			setIf(&rec.Beta, k.Beta)
		}
	}
	if f := res.FinancialData; f != nil {
		setIf(&rec.Revenue, f.TotalRevenue)
		setIf(&rec.EBITDA, f.EBITDA)
		if rec.CurrentPrice == nil {
			setIf(&rec.CurrentPrice, f.CurrentPrice)
		}
	}
	return rec
}

// ==================== Requests ====================

func (c *YahooClient) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// ensureCrumb returns a cached crumb or fetches a fresh cookie+crumb pair.
func (c *YahooClient) ensureCrumb(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.crumb != "" && time.Since(c.crumbTime) < crumbTTL {
		return c.crumb, nil
	}

	// Seed the session cookie. The response status does not matter, only
	// the Set-Cookie header does.
	if _, _, err := c.get(ctx, c.seedURL); err != nil {
		return "", fmt.Errorf("failed to seed session cookie: %w", err)
	}

	body, status, err := c.get(ctx, fmt.Sprintf(getCrumbURL, c.quoteHost))
	if err != nil {
		return "", fmt.Errorf("failed to fetch crumb: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("crumb endpoint returned status %d", status)
	}
	crumb := strings.TrimSpace(string(body))
	if crumb == "" || strings.Contains(crumb, "<html") {
		return "", fmt.Errorf("crumb endpoint returned an unusable crumb")
	}

	c.crumb = crumb
	c.crumbTime = time.Now()
	return crumb, nil
}

func (c *YahooClient) invalidateCrumb() {
	c.mu.Lock()
	c.crumb = ""
	c.mu.Unlock()
}

func (c *YahooClient) quoteSummary(ctx context.Context, ticker, modules string) (*quoteSummaryResult, error) {
	crumb, err := c.ensureCrumb(ctx)
	if err != nil {
		return nil, err
	}

	fetch := func(crumb string) ([]byte, int, error) {
		u := fmt.Sprintf(quoteSummaryURL, c.quoteHost, url.PathEscape(ticker), modules, url.QueryEscape(crumb))
		return c.get(ctx, u)
	}

	body, status, err := fetch(crumb)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		// Stale crumb. Refresh the session once and retry.
		c.invalidateCrumb()
		crumb, err = c.ensureCrumb(ctx)
		if err != nil {
			return nil, err
		}
		body, status, err = fetch(crumb)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("quoteSummary returned status %d for %s", status, ticker)
	}

	var parsed quoteSummaryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse quoteSummary response: %w", err)
	}
	if apiErr := parsed.QuoteSummary.Error; apiErr != nil {
		return nil, fmt.Errorf("quoteSummary error for %s: %s", ticker, apiErr.Description)
	}
	if len(parsed.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("quoteSummary returned no result for %s", ticker)
	}
	return &parsed.QuoteSummary.Result[0], nil
}

// latestClose reads the current quote from the chart endpoint, which needs
// no crumb.
func (c *YahooClient) latestClose(ctx context.Context, symbol string) (float64, error) {
	u := fmt.Sprintf(chartURL, c.chartHost, url.PathEscape(symbol), "5d")
	body, status, err := c.get(ctx, u)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("chart endpoint returned status %d for %s", status, symbol)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse chart response: %w", err)
	}
	if apiErr := parsed.Chart.Error; apiErr != nil {
		return 0, fmt.Errorf("chart error for %s: %s", symbol, apiErr.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return 0, fmt.Errorf("chart returned no result for %s", symbol)
	}

	px := parsed.Chart.Result[0].Meta.RegularMarketPrice
	if px == 0 {
		px = parsed.Chart.Result[0].Meta.ChartPreviousClose
	}
	if px <= 0 || math.IsNaN(px) {
		return 0, fmt.Errorf("chart returned no usable price for %s", symbol)
	}
	return px, nil
}

// ==================== Mapping ====================

// statementsFromResult translates Yahoo's per-year statement rows into the
// canonical tables. Yahoo lists years newest first; tables are sorted
// oldest first afterwards.
func statementsFromResult(res *quoteSummaryResult) *models.Statements {
	s := models.NewStatements()

	if h := res.IncomeStatementHistory; h != nil {
		for _, row := range h.Statements {
			date := row.EndDate.date()
			if date == "" {
				continue
			}
			setCell(s.Income, date, models.ColRevenue, row.TotalRevenue)
			setCell(s.Income, date, models.ColCostOfRevenue, row.CostOfRevenue)
			setCell(s.Income, date, models.ColGrossProfit, row.GrossProfit)
			setCell(s.Income, date, models.ColOperatingIncome, row.OperatingIncome)
			setCell(s.Income, date, models.ColEBIT, row.EBIT)
			setCell(s.Income, date, models.ColInterestExpense, row.InterestExpense)
			setCell(s.Income, date, models.ColIncomeBeforeTax, row.IncomeBeforeTax)
			setCell(s.Income, date, models.ColIncomeTaxExpense, row.IncomeTaxExpense)
			setCell(s.Income, date, models.ColNetIncome, row.NetIncome)
		}
	}

	if h := res.BalanceSheetHistory; h != nil {
		for _, row := range h.Statements {
			date := row.EndDate.date()
			if date == "" {
				continue
			}
			setCell(s.Balance, date, models.ColTotalAssets, row.TotalAssets)
			setCell(s.Balance, date, models.ColCurrentAssets, row.TotalCurrentAssets)
			setCell(s.Balance, date, models.ColCash, row.Cash)
			setCell(s.Balance, date, models.ColNetReceivables, row.NetReceivables)
			setCell(s.Balance, date, models.ColInventory, row.Inventory)
			setCell(s.Balance, date, models.ColTotalLiabilities, row.TotalLiab)
			setCell(s.Balance, date, models.ColCurrentLiabilities, row.TotalCurrentLiabilities)
			setCell(s.Balance, date, models.ColTotalEquity, row.TotalStockholderEquity)
			if row.ShortLongTermDebt.ok() || row.LongTermDebt.ok() {
				debt := zeroIfMissing(row.ShortLongTermDebt) + zeroIfMissing(row.LongTermDebt)
				s.Balance.SetCell(date, models.ColTotalDebt, debt)
			}
		}
	}

	if h := res.CashflowStatementHistory; h != nil {
		for _, row := range h.Statements {
			date := row.EndDate.date()
			if date == "" {
				continue
			}
			setCell(s.CashFlow, date, models.ColOperatingCashFlow, row.TotalCashFromOperatingActivities)
			setCell(s.CashFlow, date, models.ColInvestingCashFlow, row.TotalCashflowsFromInvestingActivities)
			setCell(s.CashFlow, date, models.ColFinancingCashFlow, row.TotalCashFromFinancingActivities)
			setCell(s.CashFlow, date, models.ColCapEx, row.CapitalExpenditures)
			setCell(s.CashFlow, date, models.ColDepreciation, row.Depreciation)
			setCell(s.CashFlow, date, models.ColNetChangeInCash, row.ChangeInCash)
		}
	}

	s.Income.SortByDate()
	s.Balance.SortByDate()
	s.CashFlow.SortByDate()
	return s
}

func marketFromResult(ticker string, res *quoteSummaryResult) *models.MarketData {
	m := &models.MarketData{Ticker: ticker}

	if p := res.Price; p != nil {
		m.Name = peerName(p)
		m.Currency = p.Currency
		setIf(&m.CurrentPrice, p.RegularMarketPrice)
		setIf(&m.MarketCap, p.MarketCap)
	}
	if d := res.SummaryDetail; d != nil {
		setIf(&m.Beta, d.Beta)
		setIf(&m.DividendYield, d.DividendYield)
		setIf(&m.FiftyTwoWeekHigh, d.FiftyTwoWeekHigh)
		setIf(&m.FiftyTwoWeekLow, d.FiftyTwoWeekLow)
		if m.MarketCap == nil {
			setIf(&m.MarketCap, d.MarketCap)
		}
	}
	if k := res.DefaultKeyStatistics; k != nil {
		setIf(&m.SharesOutstanding, k.SharesOutstanding)
		if m.Beta == nil {
			setIf(&m.Beta, k.Beta)
		}
	}
	return m
}

func peerName(p *yfPrice) string {
	if p.LongName != "" {
		return p.LongName
	}
	return p.ShortName
}

func setCell(t *models.Table, date, col string, v yfVal) {
	if v.ok() {
		t.SetCell(date, col, v.value())
	}
}

func setIf(dst **float64, v yfVal) {
	if v.ok() {
		*dst = models.Ptr(v.value())
	}
}

func zeroIfMissing(v yfVal) float64 {
	if !v.ok() {
		return 0
	}
	return v.value()
}
