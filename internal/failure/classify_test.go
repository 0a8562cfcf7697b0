package failure

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"apicore/internal/domain"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

func TestClassifyOrder(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", domain.Invalid("email", "must be an email"), KindValidation},
		{"empty validation falls through", domain.ValidationError{}, KindUnclassified},
		{"mysql", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, KindStore},
		{"gorm not found", fmt.Errorf("find: %w", gorm.ErrRecordNotFound), KindStore},
		{"store error", domain.StoreError{Kind: domain.StoreInvalidIdentifier}, KindStore},
		{"http", domain.NotFound("User", "1"), KindHTTPStatus},
		{"plain", errors.New("boom"), KindUnclassified},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestResolveUniqueViolation(t *testing.T) {
	err := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@b.io' for key 'users.email'"}
	out := Resolver{Production: true}.Resolve(fmt.Errorf("create user: %w", err))
	if out.Status != 409 || out.Code != domain.CodeResourceAlreadyExists {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Details["field"] != "email" {
		t.Fatalf("expected field email, got %v", out.Details["field"])
	}
	if out.Message != "A record with this email already exists" {
		t.Fatalf("unexpected message %q", out.Message)
	}
}

func TestResolveValidationMessages(t *testing.T) {
	err := domain.ValidationError{Messages: []string{
		"email must be an email",
		"name should not be empty",
		"email should not be empty",
	}}
	out := Resolver{}.Resolve(err)
	if out.Status != 400 || out.Code != domain.CodeValidationFailed {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Message != "Validation failed for the provided data" {
		t.Fatalf("unexpected message %q", out.Message)
	}
	violations := out.Details["validationErrors"].([]FieldViolation)
	if violations[0].Constraint != "isEmail" || violations[1].Constraint != "isNotEmpty" {
		t.Fatalf("unexpected constraints %+v", violations)
	}
	fields := out.Details["fields"].([]string)
	if len(fields) != 2 || fields[0] != "email" || fields[1] != "name" {
		t.Fatalf("expected [email name], got %v", fields)
	}
	if _, ok := out.Details["originalError"]; ok {
		t.Fatalf("classified errors must not carry originalError")
	}
}

func TestInferConstraint(t *testing.T) {
	cases := map[string]string{
		"age must be a number conforming to the specified constraints": "isNumber",
		"active must be a boolean value":                                "isBoolean",
		"id must be a UUID":                                             "isUuid",
		"name must be a string":                                         "isString",
		"birthday must be a valid ISO 8601 date string":                 "isDate",
		"email must be longer than or equal to 5 characters":            "minLength",
		"emailVerified must be a boolean value":                         "isBoolean",
		"contact must be an email":                                      "isEmail",
		"password must be longer than or equal to 8 characters":         "minLength",
		"bio must be shorter than or equal to 10 characters":            "maxLength",
		"confirm must match password exactly":                           "matches",
		"role failed on the 'oneof' rule":                               "validation",
	}
	for msg, want := range cases {
		if got := InferConstraint(msg); got != want {
			t.Fatalf("%q: got %s want %s", msg, got, want)
		}
	}
}

func TestResolveStoreKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   domain.ErrorCode
	}{
		{domain.StoreError{Kind: domain.StoreRecordNotFound}, 404, domain.CodeResourceNotFound},
		{domain.StoreError{Kind: domain.StoreInvalidIdentifier}, 400, domain.CodeValidationInvalidFormat},
		{domain.StoreError{Kind: domain.StoreTransaction}, 500, domain.CodeDatabaseTransactionFailed},
		{domain.StoreError{Kind: domain.StoreUnknown}, 500, domain.CodeInternal},
		{&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row: a foreign key constraint fails (`db`.`projects`, CONSTRAINT `fk` FOREIGN KEY (`owner_id`) REFERENCES `users` (`id`))"}, 400, domain.CodeDatabaseConstraintViolation},
		{&mysql.MySQLError{Number: 1146, Message: "Table 'db.users' doesn't exist"}, 500, domain.CodeDatabaseConnectionFailed},
		{&mysql.MySQLError{Number: 2006, Message: "MySQL server has gone away"}, 500, domain.CodeDatabaseConnectionFailed},
		{&mysql.MySQLError{Number: 1264, Message: "Out of range value"}, 400, domain.CodeDatabaseConstraintViolation},
		{gorm.ErrMissingWhereClause, 400, domain.CodeValidationFailed},
		{mysql.ErrInvalidConn, 500, domain.CodeDatabaseConnectionFailed},
		{sql.ErrNoRows, 404, domain.CodeResourceNotFound},
	}
	for _, tc := range cases {
		out := Resolver{Production: true}.Resolve(tc.err)
		if out.Status != tc.status || out.Code != tc.code {
			t.Fatalf("%v: got %d %s want %d %s", tc.err, out.Status, out.Code, tc.status, tc.code)
		}
	}
}

func TestResolveForeignKeyField(t *testing.T) {
	err := &mysql.MySQLError{Number: 1452, Message: "a foreign key constraint fails (`db`.`projects`, CONSTRAINT `fk` FOREIGN KEY (`owner_id`) REFERENCES `users` (`id`))"}
	out := Resolver{}.Resolve(err)
	if out.Details["field"] != "owner_id" {
		t.Fatalf("expected owner_id, got %v", out.Details["field"])
	}
}

func TestResolveHTTPStatusDefaults(t *testing.T) {
	out := Resolver{}.Resolve(domain.HTTPError{Status: 403})
	if out.Code != domain.CodeAuthInsufficientPermissions || out.Message != "Forbidden" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	out = Resolver{}.Resolve(domain.HTTPError{Status: 418, Message: "teapot"})
	if out.Code != domain.CodeInternal || out.Status != 418 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	out = Resolver{}.Resolve(domain.RequestTimeout(2 * time.Second))
	if out.Status != 408 || out.Code != domain.CodeRequestTimeout || out.Details["timeoutMs"] != int64(2000) {
		t.Fatalf("unexpected timeout outcome %+v", out)
	}
}

func TestResolveUnclassified(t *testing.T) {
	syntaxErr := json.Unmarshal([]byte("{"), &struct{}{})
	_, numErr := strconv.Atoi("x")
	cases := []struct {
		err    error
		status int
		code   domain.ErrorCode
	}{
		{syntaxErr, 400, domain.CodeValidationFailed},
		{numErr, 400, domain.CodeValidationInvalidFormat},
		{sql.ErrTxDone, 500, domain.CodeDatabaseTransactionFailed},
		{context.DeadlineExceeded, 408, domain.CodeRequestTimeout},
		{errors.New("boom"), 500, domain.CodeInternal},
	}
	for _, tc := range cases {
		out := Resolver{Production: true}.Resolve(tc.err)
		if out.Status != tc.status || out.Code != tc.code {
			t.Fatalf("%v: got %d %s", tc.err, out.Status, out.Code)
		}
		if _, ok := out.Details["originalError"]; ok {
			t.Fatalf("production outcome leaked originalError")
		}
	}
}

func TestResolvePanicOutsideProduction(t *testing.T) {
	out := Resolver{}.Resolve(domain.PanicError{Value: "kaboom", Stack: []byte("goroutine 1")})
	if out.Status != 500 || out.Details["value"] != "kaboom" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	orig, ok := out.Details["originalError"].(map[string]any)
	if !ok || orig["stack"] != "goroutine 1" {
		t.Fatalf("expected originalError with stack, got %v", out.Details)
	}
	if out.Stack != "goroutine 1" {
		t.Fatalf("expected stack on outcome, got %q", out.Stack)
	}
}

func TestResolveStackForEveryFamily(t *testing.T) {
	errs := []error{
		domain.ValidationError{Messages: []string{"name should not be empty"}},
		domain.StoreError{Kind: domain.StoreRecordNotFound, Entity: "users"},
		domain.NotFound("User", "u1"),
		errors.New("plain failure"),
	}
	for _, err := range errs {
		if out := (Resolver{}).Resolve(err); out.Stack == "" {
			t.Fatalf("%T: expected a stack outside production", err)
		}
		if out := (Resolver{Production: true}).Resolve(err); out.Stack != "" {
			t.Fatalf("%T: production outcome leaked a stack", err)
		}
	}
}

func TestResolveNil(t *testing.T) {
	out := Resolver{}.Resolve(nil)
	if out.Status != 500 || out.Details == nil {
		t.Fatalf("unexpected outcome %+v", out)
	}
}
