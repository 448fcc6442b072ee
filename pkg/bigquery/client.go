package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const metadataCheckTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

type Pinger interface {
	Ping(context.Context) error
}

// OutcomeRow is one checkout attempt as stored in the outcomes table.
type OutcomeRow struct {
	AttemptID     string    `bigquery:"attempt_id"`
	OrderID       string    `bigquery:"order_id"`
	OrderNumber   string    `bigquery:"order_number"`
	TotalCents    int64     `bigquery:"total_cents"`
	LinesCreated  int       `bigquery:"lines_created"`
	LinesDegraded int       `bigquery:"lines_degraded"`
	LinesDropped  int       `bigquery:"lines_dropped"`
	Succeeded     bool      `bigquery:"succeeded"`
	Linked        bool      `bigquery:"linked"`
	Verified      bool      `bigquery:"verified"`
	PaymentStatus string    `bigquery:"payment_status"`
	RecordedAt    time.Time `bigquery:"recorded_at"`
}

var outcomeSchema = mustInferSchema(OutcomeRow{})

// Client exports checkout outcomes to the analytics dataset. The dataset must
// already exist; the outcomes table is created day-partitioned on
// recorded_at when missing.
type Client struct {
	client *bigquery.Client
	table  *bigquery.Table
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	tableID := outcomesTable(cfg)
	if tableID == "" {
		return nil, errTableNameRequired
	}

	bqClient, err := bigquery.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{client: bqClient, table: bqClient.Dataset(datasetID).Table(tableID)}

	created, err := c.prepare(ctx)
	if err != nil {
		_ = bqClient.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"table":   c.table.FullyQualifiedName(),
			"created": created,
		}), "bigquery.ready")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

func outcomesTable(cfg config.BigQueryConfig) string {
	return strings.TrimSpace(cfg.CheckoutOutcomesTable)
}

// prepare reports whether it had to create the outcomes table.
func (c *Client) prepare(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	if _, err := c.client.Dataset(c.table.DatasetID).Metadata(ctx); err != nil {
		if isNotFound(err) {
			return false, fmt.Errorf("dataset %q does not exist", c.table.DatasetID)
		}
		return false, fmt.Errorf("checking dataset %q: %w", c.table.DatasetID, err)
	}

	_, err := c.table.Metadata(ctx)
	switch {
	case err == nil:
		return false, nil
	case !isNotFound(err):
		return false, fmt.Errorf("checking table %q: %w", c.table.TableID, err)
	}

	err = c.table.Create(ctx, &bigquery.TableMetadata{
		Schema:           outcomeSchema,
		TimePartitioning: &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: "recorded_at"},
		Clustering:       &bigquery.Clustering{Fields: []string{"succeeded", "payment_status"}},
		Description:      "One row per storefront checkout attempt.",
	})
	if err != nil && !isConflict(err) {
		return false, fmt.Errorf("creating table %q: %w", c.table.TableID, err)
	}
	return err == nil, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()
	_, err := c.table.Metadata(ctx)
	return err
}

// InsertOutcomes streams rows keyed by attempt id, so a retried export of the
// same attempt is deduplicated by BigQuery's best-effort insert ids.
func (c *Client) InsertOutcomes(ctx context.Context, rows ...OutcomeRow) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	if len(rows) == 0 {
		return nil
	}
	return c.table.Inserter().Put(ctx, outcomeSavers(rows))
}

func outcomeSavers(rows []OutcomeRow) []*bigquery.StructSaver {
	savers := make([]*bigquery.StructSaver, 0, len(rows))
	for i := range rows {
		savers = append(savers, &bigquery.StructSaver{
			Struct:   rows[i],
			Schema:   outcomeSchema,
			InsertID: rows[i].AttemptID,
		})
	}
	return savers
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func mustInferSchema(row any) bigquery.Schema {
	schema, err := bigquery.InferSchema(row)
	if err != nil {
		panic(fmt.Sprintf("bigquery: infer schema for %T: %v", row, err))
	}
	return schema
}

func isNotFound(err error) bool {
	return apiStatus(err) == http.StatusNotFound
}

func isConflict(err error) bool {
	return apiStatus(err) == http.StatusConflict
}

func apiStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code
	}
	return 0
}
