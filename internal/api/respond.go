package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"reflect"  // Struct tag lookup for validation details
	"strconv"  // String conversion
	"strings"  // String manipulation

	"instapay/internal/domain"     // User model
	"instapay/internal/ledger"     // Ledger errors
	"instapay/internal/middleware" // Authenticated user
	"instapay/internal/utils"      // PIN format

	"github.com/gin-gonic/gin"               // Gin web framework
	"github.com/gin-gonic/gin/binding"       // Validator engine
	"github.com/go-playground/validator/v10" // Validation errors
	"github.com/sirupsen/logrus"             // Logging library
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		// Report fields by their JSON name
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("pin", func(fl validator.FieldLevel) bool {
			return utils.IsValidPin(fl.Field().String())
		})
	}
}

// bindJSON binds the request body and answers 400 on failure
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = validationMessage(fe)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": details})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
	return false
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without_all":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "numeric":
		return "must contain only digits"
	case "pin":
		return "must be 4 to 6 digits"
	case "iso4217":
		return "must be a valid ISO 4217 currency code"
	case "iso3166_1_alpha2":
		return "must be a valid ISO 3166 country code"
	case "url", "http_url":
		return "must be a valid URL"
	}
	return "is invalid"
}

// currentUserID returns the authenticated user id or answers 401
func currentUserID(c *gin.Context) (uint, bool) {
	id := middleware.CurrentUserID(c)
	if id == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return id, true
}

// currentUser returns the user loaded by the auth middleware
func currentUser(c *gin.Context) *domain.User {
	return middleware.CurrentUser(c)
}

// idParam parses a numeric path parameter or answers 400
func idParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(v), true
}

// respondLedgerError maps ledger errors to responses. Anything unknown is logged and answered
// with a generic 500 carrying fallback.
func respondLedgerError(c *gin.Context, err error, fallback string, fields logrus.Fields) {
	var (
		pinErr    *ledger.PinError
		lockedErr *ledger.LockedError
		limitErr  *ledger.LimitError
	)
	switch {
	case errors.As(err, &lockedErr):
		c.JSON(http.StatusLocked, gin.H{"error": "Wallet is locked", "locked_until": lockedErr.Until})
	case errors.As(err, &pinErr):
		body := gin.H{"error": "Invalid PIN", "remaining_attempts": pinErr.Remaining}
		if pinErr.LockedUntil != nil {
			body["locked_until"] = *pinErr.LockedUntil
		}
		c.JSON(http.StatusUnauthorized, body)
	case errors.As(err, &limitErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Amount exceeds the " + limitErr.Limit + " limit",
			"limit":     limitErr.Limit,     // transaction, daily or monthly
			"max":       limitErr.Max,       // Configured cap
			"remaining": limitErr.Remaining, // Headroom left in the window
		})
	case errors.Is(err, ledger.ErrWalletNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
	case errors.Is(err, ledger.ErrRecipientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipient not found"})
	case errors.Is(err, ledger.ErrWalletInactive):
		c.JSON(http.StatusForbidden, gin.H{"error": "Wallet is not active"})
	case errors.Is(err, ledger.ErrAlreadyProcessed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidType),
		errors.Is(err, ledger.ErrCurrencyMismatch),
		errors.Is(err, ledger.ErrSameWallet),
		errors.Is(err, ledger.ErrRecipientInactive),
		errors.Is(err, ledger.ErrPinNotSet),
		errors.Is(err, ledger.ErrPinFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": capitalize(err.Error())})
	default:
		respondInternal(c, err, fallback, fields)
	}
}

// respondInternal logs err and answers 500 with a generic message
func respondInternal(c *gin.Context, err error, msg string, fields logrus.Fields) {
	entry := logrus.WithError(err).WithField("path", c.FullPath())
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Error(msg)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
