package inspection

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orderrisk/internal/fetcher"
	"github.com/sells-group/orderrisk/internal/model"
)

// Provider fetches the full inspection dataset.
type Provider interface {
	FetchAll(ctx context.Context) ([]model.InspectionRecord, error)
}

// Getter performs an HTTP GET with extra headers.
type Getter interface {
	Get(ctx context.Context, rawURL string, header http.Header) (io.ReadCloser, error)
}

// SODAConfig configures SODAClient.
type SODAConfig struct {
	BaseURL    string
	AppToken   string
	BatchSize  int
	MaxRecords int
	// CAMIS, when set, restricts the query to these restaurants.
	CAMIS []string
}

// SODAClient pages through the NYC DOHMH inspection results dataset on a
// Socrata (SODA) endpoint.
type SODAClient struct {
	http Getter
	cfg  SODAConfig
}

// NewSODAClient creates a SODAClient.
func NewSODAClient(g Getter, cfg SODAConfig) *SODAClient {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10000
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 200000
	}
	return &SODAClient{http: g, cfg: cfg}
}

// sodaRecord is the wire shape of one dataset row. Socrata sends every
// column as a string and omits null columns.
type sodaRecord struct {
	CAMIS                string `json:"camis"`
	DBA                  string `json:"dba"`
	Boro                 string `json:"boro"`
	CuisineDescription   string `json:"cuisine_description"`
	InspectionDate       string `json:"inspection_date"`
	Action               string `json:"action"`
	ViolationCode        string `json:"violation_code"`
	ViolationDescription string `json:"violation_description"`
	CriticalFlag         string `json:"critical_flag"`
	Grade                string `json:"grade"`
}

const sodaTimeLayout = "2006-01-02T15:04:05.000"

// FetchAll requests pages ordered by inspection_date descending until a
// short page or MaxRecords. A failed page fails the whole fetch.
func (c *SODAClient) FetchAll(ctx context.Context) ([]model.InspectionRecord, error) {
	var header http.Header
	if c.cfg.AppToken != "" {
		header = http.Header{"X-App-Token": {c.cfg.AppToken}}
	}

	var out []model.InspectionRecord
	for offset := 0; offset < c.cfg.MaxRecords; offset += c.cfg.BatchSize {
		limit := min(c.cfg.BatchSize, c.cfg.MaxRecords-offset)
		page, err := c.fetchPage(ctx, header, limit, offset)
		if err != nil {
			return nil, eris.Wrapf(err, "soda: page at offset %d", offset)
		}
		for _, r := range page {
			out = append(out, r.toModel())
		}
		zap.L().Debug("soda: fetched page", zap.Int("offset", offset), zap.Int("rows", len(page)))
		if len(page) < limit {
			break
		}
	}

	zap.L().Info("soda: fetch complete", zap.Int("records", len(out)))
	return out, nil
}

func (c *SODAClient) fetchPage(ctx context.Context, header http.Header, limit, offset int) ([]sodaRecord, error) {
	body, err := c.http.Get(ctx, c.pageURL(limit, offset), header)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck
	return fetcher.CollectJSONArray[sodaRecord](ctx, body)
}

func (c *SODAClient) pageURL(limit, offset int) string {
	q := url.Values{}
	q.Set("$limit", strconv.Itoa(limit))
	q.Set("$offset", strconv.Itoa(offset))
	q.Set("$order", "inspection_date DESC")
	if len(c.cfg.CAMIS) > 0 {
		quoted := make([]string, len(c.cfg.CAMIS))
		for i, id := range c.cfg.CAMIS {
			quoted[i] = "'" + strings.ReplaceAll(id, "'", "''") + "'"
		}
		q.Set("$where", "camis IN ("+strings.Join(quoted, ",")+")")
	}
	sep := "?"
	if strings.Contains(c.cfg.BaseURL, "?") {
		sep = "&"
	}
	return c.cfg.BaseURL + sep + q.Encode()
}

func (r sodaRecord) toModel() model.InspectionRecord {
	rec := model.InspectionRecord{
		CAMIS:                strings.TrimSpace(r.CAMIS),
		DBA:                  upper(r.DBA),
		Boro:                 model.ParseBorough(r.Boro),
		CuisineDescription:   strings.TrimSpace(r.CuisineDescription),
		Action:               upper(r.Action),
		ViolationCode:        strings.TrimSpace(r.ViolationCode),
		ViolationDescription: upper(r.ViolationDescription),
		Critical:             strings.EqualFold(strings.TrimSpace(r.CriticalFlag), "Critical"),
		Grade:                model.ParseGrade(r.Grade),
	}
	if d, err := time.Parse(sodaTimeLayout, strings.TrimSpace(r.InspectionDate)); err == nil {
		rec.InspectionDate = d
	}
	return rec
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
