package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"ttclub/internal/core"
	"ttclub/internal/log"
	"ttclub/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config names the spreadsheet, its two tabs and the service account used
// to write them.
type Config struct {
	SpreadsheetID      string
	MembersSheet       string
	TransactionsSheet  string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// Client rewrites the members and transactions tabs from a snapshot.
type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	membersSheet      string
	transactionsSheet string
}

var _ sheets.Mirror = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	credentialsJSON, err := cfg.credentials(ctx)
	if err != nil {
		return nil, err
	}
	return newClient(ctx, cfg,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

func newClient(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		svc:               svc,
		spreadsheetID:     cfg.SpreadsheetID,
		membersSheet:      cfg.MembersSheet,
		transactionsSheet: cfg.TransactionsSheet,
	}, nil
}

func (cfg Config) validate() error {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return errors.New("missing spreadsheet id")
	}
	if cfg.MembersSheet == "" || cfg.TransactionsSheet == "" {
		return errors.New("sheet names cannot be empty")
	}
	if cfg.MembersSheet == cfg.TransactionsSheet {
		return fmt.Errorf("members and transactions must use different sheets, both are %q", cfg.MembersSheet)
	}
	return nil
}

// credentials prefers inline JSON, then the configured file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func (cfg Config) credentials(ctx context.Context) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		log.FromContext(ctx).DebugContext(ctx, "Using inline service account credentials", "size", len(inline))
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		log.FromContext(ctx).DebugContext(ctx, "Read service account credentials", log.FieldPath, file, "size", len(data))
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Mirror clears both tabs and writes the snapshot's tables in one batch.
func (c *Client) Mirror(ctx context.Context, snap core.Snapshot) (sheets.Result, error) {
	if c.svc == nil {
		return sheets.Result{}, errors.New("sheets service not initialized")
	}
	members, transactions := sheets.Tables(snap)

	clearReq := &gsheet.BatchClearValuesRequest{
		Ranges: []string{quoteSheet(c.membersSheet), quoteSheet(c.transactionsSheet)},
	}
	if _, err := c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID, clearReq).Context(ctx).Do(); err != nil {
		return sheets.Result{}, fmt.Errorf("clear sheets: %w", err)
	}

	update := &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data: []*gsheet.ValueRange{
			{Range: anchor(c.membersSheet), Values: toValues(members)},
			{Range: anchor(c.transactionsSheet), Values: toValues(transactions)},
		},
	}
	resp, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, update).Context(ctx).Do()
	if err != nil {
		return sheets.Result{}, fmt.Errorf("write sheets: %w", err)
	}

	res := sheets.ResultOf(members, transactions)
	logger := log.FromContext(ctx).WithComponent(log.ComponentSheets)
	logger.InfoContext(ctx, "Mirrored ledger to spreadsheet",
		log.FieldSheet, c.membersSheet,
		log.FieldRows, res.MemberRows)
	logger.InfoContext(ctx, "Mirrored ledger to spreadsheet",
		log.FieldSheet, c.transactionsSheet,
		log.FieldRows, res.TxRows,
		"updated_cells", resp.TotalUpdatedCells)
	return res, nil
}

func anchor(name string) string {
	return quoteSheet(name) + "!A1"
}

// quoteSheet renders a tab name for A1 notation; a bare quoted name covers
// every cell of the tab.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func toValues(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		vals := make([]any, len(row))
		for j, cell := range row {
			vals[j] = cell
		}
		out[i] = vals
	}
	return out
}
