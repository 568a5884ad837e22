package api

import (
	"encoding/csv" // CSV export
	"errors"       // Error matching
	"net/http"     // HTTP status codes
	"sort"         // Stable category order
	"strconv"      // String conversion
	"strings"      // String manipulation
	"time"         // Date filters

	"instapay/internal/domain" // Importing domain models
	"instapay/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

const maxExportRows = 10000

var errBadFilter = errors.New("invalid filter")

// txFilter holds the history query parameters
type txFilter struct {
	UserID   uint
	WalletID uint
	Type     string
	Status   string
	Category string
	From     *time.Time
	To       *time.Time // Exclusive
	Search   string
}

// parseTxFilter reads filters from the query. user_id is honoured only when allowUser is set.
func parseTxFilter(c *gin.Context, allowUser bool) (txFilter, error) {
	f := txFilter{
		Type:     strings.ToUpper(strings.TrimSpace(c.Query("type"))),
		Status:   strings.ToUpper(strings.TrimSpace(c.Query("status"))),
		Category: strings.ToUpper(strings.TrimSpace(c.Query("category"))),
		Search:   strings.TrimSpace(c.Query("search")),
	}
	for name, dest := range map[string]*uint{"wallet_id": &f.WalletID, "user_id": &f.UserID} {
		raw := c.Query(name)
		if raw == "" || (name == "user_id" && !allowUser) {
			continue
		}
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return f, errBadFilter
		}
		*dest = uint(v)
	}
	var err error
	if f.From, err = parseDate(c.Query("from"), false); err != nil {
		return f, errBadFilter
	}
	if f.To, err = parseDate(c.Query("to"), true); err != nil {
		return f, errBadFilter
	}
	return f, nil
}

// parseDate accepts RFC 3339 or a plain date. A plain upper bound covers the whole day.
func parseDate(raw string, upper bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

// apply adds the filter conditions to q
func (f txFilter) apply(q *gorm.DB) *gorm.DB {
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.WalletID != 0 {
		q = q.Where("wallet_id = ?", f.WalletID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(description) LIKE ? OR LOWER(reference) LIKE ?", like, like)
	}
	return q
}

// cacheKey identifies the filter and page in the history cache
func (f txFilter) cacheKey(p utils.Page) string {
	var parts []string
	for _, kv := range [][2]string{
		{"wallet", strconv.FormatUint(uint64(f.WalletID), 10)},
		{"type", f.Type},
		{"status", f.Status},
		{"category", f.Category},
		{"from", formatTime(f.From)},
		{"to", formatTime(f.To)},
		{"q", f.Search},
		{"page", strconv.Itoa(p.Page)},
		{"size", strconv.Itoa(p.PageSize)},
	} {
		parts = append(parts, kv[0]+"="+kv[1])
	}
	return strings.Join(parts, ":")
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// historyPage is the paginated list response
type historyPage struct {
	Transactions []domain.Transaction `json:"transactions"` // List of transactions
	Page         int                  `json:"page"`         // Current page
	PageSize     int                  `json:"page_size"`    // Page size
	Total        int64                `json:"total"`        // Total transactions
	TotalPages   int                  `json:"total_pages"`  // Total pages
	Cached       bool                 `json:"cached"`       // Served from cache
}

// listTransactions runs a filtered, paginated, newest-first query
func listTransactions(db *gorm.DB, f txFilter, p utils.Page) (*historyPage, error) {
	var total int64 // Total count for pagination
	if err := f.apply(db.Model(&domain.Transaction{})).Count(&total).Error; err != nil {
		return nil, err
	}
	var txs []domain.Transaction
	if err := f.apply(db.Model(&domain.Transaction{})).
		Order("created_at desc, id desc").
		Offset(p.Offset()).
		Limit(p.PageSize).
		Find(&txs).Error; err != nil {
		return nil, err
	}
	return &historyPage{
		Transactions: txs,
		Page:         p.Page,
		PageSize:     p.PageSize,
		Total:        total,
		TotalPages:   p.TotalPages(total),
	}, nil
}

// ListTransactionsHandler returns the caller's transaction history
func ListTransactionsHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		f, err := parseTxFilter(c, false)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter"})
			return
		}
		f.UserID = userID // Scope to the caller
		page := utils.ParsePage(c)

		ctx := c.Request.Context()
		cacheKey := historyCacheKey(userID, f.cacheKey(page))
		var cached historyPage
		// If found in cache, return it
		if found, err := utils.GetCache(ctx, env.Redis, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}
		resp, err := listTransactions(env.DB.WithContext(ctx), f, page)
		if err != nil {
			respondInternal(c, err, "Failed to fetch transactions", logrus.Fields{"user_id": userID})
			return
		}
		_ = utils.SetCache(ctx, env.Redis, cacheKey, resp, env.cacheTTL()) // Cache the page
		c.JSON(http.StatusOK, resp)
	}
}

// GetTransactionHandler returns one of the caller's transactions
func GetTransactionHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var tx domain.Transaction
		err := env.DB.WithContext(c.Request.Context()).Where("id = ? AND user_id = ?", id, userID).First(&tx).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
			return
		}
		if err != nil {
			respondInternal(c, err, "Failed to fetch transaction", logrus.Fields{"transaction_id": id})
			return
		}
		c.JSON(http.StatusOK, gin.H{"transaction": tx})
	}
}

var csvHeader = []string{
	"reference", "created_at", "wallet_id", "type", "category", "amount", "currency",
	"balance_before", "balance_after", "status", "description", "group_reference",
}

// ExportTransactionsHandler streams the filtered history as CSV
func ExportTransactionsHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		f, err := parseTxFilter(c, false)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter"})
			return
		}
		f.UserID = userID
		var txs []domain.Transaction
		if err := f.apply(env.DB.WithContext(c.Request.Context()).Model(&domain.Transaction{})).
			Order("created_at desc, id desc").Limit(maxExportRows).Find(&txs).Error; err != nil {
			respondInternal(c, err, "Failed to export transactions", logrus.Fields{"user_id": userID})
			return
		}

		filename := "transactions-" + env.now().Format("20060102") + ".csv"
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Status(http.StatusOK)

		w := csv.NewWriter(c.Writer)
		_ = w.Write(csvHeader)
		for _, t := range txs {
			_ = w.Write([]string{
				t.Reference,
				t.CreatedAt.UTC().Format(time.RFC3339),
				strconv.FormatUint(uint64(t.WalletID), 10),
				t.Type,
				t.Category,
				t.Amount.StringFixed(2),
				t.Currency,
				t.BalanceBefore.StringFixed(2),
				t.BalanceAfter.StringFixed(2),
				t.Status,
				t.Description,
				t.GroupReference,
			})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			logrus.WithField("user_id", userID).WithError(err).Warn("CSV export interrupted")
		}
	}
}

// statsPeriods maps the accepted period names to their length
var statsPeriods = map[string]func(time.Time) time.Time{
	"7d":  func(t time.Time) time.Time { return t.AddDate(0, 0, -7) },
	"30d": func(t time.Time) time.Time { return t.AddDate(0, 0, -30) },
	"90d": func(t time.Time) time.Time { return t.AddDate(0, 0, -90) },
	"1y":  func(t time.Time) time.Time { return t.AddDate(-1, 0, 0) },
}

// CategoryTotal is the debit total of one category
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// TransactionStats summarises completed transactions over a period
type TransactionStats struct {
	Period       string          `json:"period"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	Net          decimal.Decimal `json:"net"`
	Count        int             `json:"count"`
	Categories   []CategoryTotal `json:"categories"`
}

// summarise folds completed rows into stats. Debits are reported as positive totals.
func summarise(rows []domain.Transaction) (credits, debits decimal.Decimal, categories []CategoryTotal) {
	credits, debits = decimal.Zero, decimal.Zero
	byCategory := map[string]*CategoryTotal{}
	for _, r := range rows {
		if r.Amount.IsPositive() {
			credits = credits.Add(r.Amount)
			continue
		}
		debits = debits.Add(r.Amount.Neg())
		name := r.Category
		if name == "" {
			name = domain.CategoryOther
		}
		ct, ok := byCategory[name]
		if !ok {
			ct = &CategoryTotal{Category: name, Total: decimal.Zero}
			byCategory[name] = ct
		}
		ct.Total = ct.Total.Add(r.Amount.Neg())
		ct.Count++
	}
	categories = make([]CategoryTotal, 0, len(byCategory))
	for _, ct := range byCategory {
		categories = append(categories, *ct)
	}
	sort.Slice(categories, func(i, j int) bool {
		if !categories[i].Total.Equal(categories[j].Total) {
			return categories[i].Total.GreaterThan(categories[j].Total)
		}
		return categories[i].Category < categories[j].Category
	})
	return credits, debits, categories
}

// TransactionStatsHandler returns totals for 7d, 30d, 90d or 1y
func TransactionStatsHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		period := c.DefaultQuery("period", "30d")
		start, ok := statsPeriods[period]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "period must be one of 7d, 30d, 90d, 1y"})
			return
		}
		now := env.now()
		f := txFilter{UserID: userID, Status: domain.TxCompleted}
		from := start(now)
		f.From = &from
		if raw := c.Query("wallet_id"); raw != "" {
			v, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter"})
				return
			}
			f.WalletID = uint(v)
		}

		var rows []domain.Transaction
		if err := f.apply(env.DB.WithContext(c.Request.Context()).Model(&domain.Transaction{})).
			Select("amount", "category").Find(&rows).Error; err != nil {
			respondInternal(c, err, "Failed to compute statistics", logrus.Fields{"user_id": userID})
			return
		}
		credits, debits, categories := summarise(rows)
		c.JSON(http.StatusOK, TransactionStats{
			Period:       period,
			From:         from,
			To:           now,
			TotalCredits: credits,
			TotalDebits:  debits,
			Net:          credits.Sub(debits),
			Count:        len(rows),
			Categories:   categories,
		})
	}
}
