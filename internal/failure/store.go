package failure

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"apicore/internal/domain"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// MySQL server and client error numbers the store filter distinguishes.
const (
	mysqlDupEntry          = 1062
	mysqlDupEntryWithKey   = 1586
	mysqlRowIsReferenced   = 1451
	mysqlNoReferencedRow   = 1452
	mysqlRowIsReferenced0  = 1216
	mysqlNoReferencedRow0  = 1217
	mysqlNoSuchTable       = 1146
	mysqlBadField          = 1054
	mysqlTooManyConns      = 1040
	mysqlAccessDenied      = 1045
	mysqlBadDB             = 1049
	mysqlConnectionError   = 2002
	mysqlConnHostError     = 2003
	mysqlServerGone        = 2006
	mysqlServerLost        = 2013
	mysqlLockDeadlock      = 1213
	mysqlLockWaitTimeout   = 1205
	mysqlDataTooLong       = 1406
	mysqlBadNull           = 1048
	mysqlTruncatedWrongVal = 1292
)

var (
	dupKeyPattern = regexp.MustCompile(`for key '([^']+)'`)
	fkPattern     = regexp.MustCompile("FOREIGN KEY \\(`([^`]+)`\\)")
	colPattern    = regexp.MustCompile(`column '([^']+)'`)
)

var gormInvalid = []error{
	gorm.ErrInvalidField,
	gorm.ErrInvalidData,
	gorm.ErrInvalidValue,
	gorm.ErrPrimaryKeyRequired,
	gorm.ErrMissingWhereClause,
	gorm.ErrModelValueRequired,
	gorm.ErrUnsupportedRelation,
}

var connectionSentinels = []error{
	driver.ErrBadConn,
	mysql.ErrInvalidConn,
	sql.ErrConnDone,
}

// fault is the driver-neutral form of a persistence failure.
type fault struct {
	kind  domain.StoreKind
	field string
	code  string
	msg   string
}

func normalizeStore(err error) (fault, bool) {
	var se domain.StoreError
	if errors.As(err, &se) {
		return fault{kind: se.Kind, field: se.Field, code: se.Code, msg: err.Error()}, true
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return fromMySQL(me), true
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, sql.ErrNoRows):
		return fault{kind: domain.StoreRecordNotFound}, true
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fault{kind: domain.StoreUniqueViolation}, true
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fault{kind: domain.StoreForeignKeyViolation}, true
	case errors.Is(err, gorm.ErrInvalidTransaction):
		return fault{kind: domain.StoreTransaction}, true
	}
	for _, target := range gormInvalid {
		if errors.Is(err, target) {
			return fault{kind: domain.StoreInvalidQuery, msg: err.Error()}, true
		}
	}
	for _, target := range connectionSentinels {
		if errors.Is(err, target) {
			return fault{kind: domain.StoreUnavailable}, true
		}
	}
	return fault{}, false
}

func fromMySQL(me *mysql.MySQLError) fault {
	f := fault{code: strconv.Itoa(int(me.Number)), msg: me.Message}
	switch me.Number {
	case mysqlDupEntry, mysqlDupEntryWithKey:
		f.kind = domain.StoreUniqueViolation
		f.field = uniqueField(me.Message)
	case mysqlRowIsReferenced, mysqlNoReferencedRow, mysqlRowIsReferenced0, mysqlNoReferencedRow0:
		f.kind = domain.StoreForeignKeyViolation
		if m := fkPattern.FindStringSubmatch(me.Message); m != nil {
			f.field = m[1]
		}
	case mysqlNoSuchTable, mysqlBadField:
		f.kind = domain.StoreSchemaMismatch
	case mysqlTooManyConns, mysqlAccessDenied, mysqlBadDB,
		mysqlConnectionError, mysqlConnHostError, mysqlServerGone, mysqlServerLost:
		f.kind = domain.StoreUnavailable
	case mysqlLockDeadlock, mysqlLockWaitTimeout:
		f.kind = domain.StoreTransaction
	case mysqlDataTooLong, mysqlBadNull, mysqlTruncatedWrongVal:
		f.kind = domain.StoreInvalidQuery
		if m := colPattern.FindStringSubmatch(me.Message); m != nil {
			f.field = m[1]
		}
	default:
		f.kind = domain.StoreKnownRequest
	}
	return f
}

// uniqueField pulls the column out of "Duplicate entry 'x' for key
// 'users.email'", dropping the table prefix and common index affixes.
func uniqueField(msg string) string {
	m := dupKeyPattern.FindStringSubmatch(msg)
	if m == nil {
		return ""
	}
	key := m[1]
	if i := strings.LastIndex(key, "."); i >= 0 {
		key = key[i+1:]
	}
	for _, p := range []string{"uq_", "uniq_", "idx_", "ux_"} {
		key = strings.TrimPrefix(key, p)
	}
	for _, s := range []string{"_unique", "_uniq", "_key", "_UNIQUE"} {
		key = strings.TrimSuffix(key, s)
	}
	return key
}

func isStoreFailure(err error) bool {
	_, ok := normalizeStore(err)
	return ok
}

func resolveStore(err error) Outcome {
	f, _ := normalizeStore(err)
	details := map[string]any{}
	if f.code != "" {
		details["dbCode"] = f.code
	}

	out := Outcome{Details: details}
	switch f.kind {
	case domain.StoreUniqueViolation:
		out.Status, out.Code = http.StatusConflict, domain.CodeResourceAlreadyExists
		out.Message = "A record with these values already exists"
		if f.field != "" {
			out.Message = "A record with this " + f.field + " already exists"
			details["field"] = f.field
		}
	case domain.StoreRecordNotFound:
		out.Status, out.Code = http.StatusNotFound, domain.CodeResourceNotFound
		out.Message = "The requested resource was not found"
	case domain.StoreForeignKeyViolation:
		out.Status, out.Code = http.StatusBadRequest, domain.CodeDatabaseConstraintViolation
		out.Message = "Cannot perform operation due to related data constraint"
		if f.field != "" {
			details["field"] = f.field
		}
	case domain.StoreInvalidIdentifier:
		out.Status, out.Code = http.StatusBadRequest, domain.CodeValidationInvalidFormat
		out.Message = "Invalid ID format provided"
	case domain.StoreSchemaMismatch:
		out.Status, out.Code = http.StatusInternalServerError, domain.CodeDatabaseConnectionFailed
		out.Message = "Database schema error"
	case domain.StoreKnownRequest:
		out.Status, out.Code = http.StatusBadRequest, domain.CodeDatabaseConstraintViolation
		out.Message = "Database operation failed"
	case domain.StoreInvalidQuery:
		out.Status, out.Code = http.StatusBadRequest, domain.CodeValidationFailed
		out.Message = "Invalid data provided to database"
		if f.field != "" {
			details["field"] = f.field
		}
		if f.msg != "" {
			details["originalMessage"] = f.msg
		}
	case domain.StoreUnavailable:
		out.Status, out.Code = http.StatusInternalServerError, domain.CodeDatabaseConnectionFailed
		out.Message = "Failed to connect to database"
	case domain.StoreTransaction:
		out.Status, out.Code = http.StatusInternalServerError, domain.CodeDatabaseTransactionFailed
		out.Message = "Database transaction failed"
	default:
		out.Status, out.Code = http.StatusInternalServerError, domain.CodeInternal
		out.Message = "An unexpected database error occurred"
	}
	return out
}
