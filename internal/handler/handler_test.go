package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spycrab06/snailmail/internal/apperr"
	"github.com/Spycrab06/snailmail/internal/logging"
	"github.com/Spycrab06/snailmail/internal/model"
	"github.com/Spycrab06/snailmail/internal/repository/memstore"
	"github.com/Spycrab06/snailmail/internal/service"
	"github.com/Spycrab06/snailmail/internal/utils"
)

const testSecret = "handler-test-secret"

type fixture struct {
	store     *memstore.Store
	accounts  *AccountHandler
	customers *CustomerHandler
}

func newFixture() fixture {
	store := memstore.New()
	log := logging.Discard()
	acct := service.NewAccountService(store, utils.PlainHasher{}, nil,
		service.AccountConfig{JWTSecret: testSecret, SessionTTLMin: 60}, log)
	return fixture{
		store:     store,
		accounts:  NewAccountHandler(acct),
		customers: NewCustomerHandler(service.NewCustomerService(store)),
	}
}

// serve runs h the way echo's router would, rendering a returned error with
// ErrorHandler.
func serve(h echo.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(logging.Discard())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h(c); err != nil {
		c.Error(err)
	}
	return rec
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

const janeSignUp = `{
	"email": "Jane@Example.com",
	"password": "hunter22",
	"phoneNumber": "",
	"street": "1 Main St",
	"city": "Houston",
	"state": "TX",
	"zipCode": "77004",
	"firstName": "Jane",
	"middleName": "",
	"lastName": "Doe",
	"accountType": "prime"
}`

func TestCheckEmail(t *testing.T) {
	f := newFixture()

	rec := serve(f.accounts.CheckEmail, postJSON("/checkEmail", `{"email":"jane@example.com"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"exists": false, "message": service.MsgEmailFree}, decode(t, rec))

	rec = serve(f.accounts.SignUp, postJSON("/userSignUp", janeSignUp))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(f.accounts.CheckEmail, postJSON("/checkEmail", `{"email":"JANE@example.com "}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, map[string]any{"exists": true, "message": service.MsgEmailTaken}, decode(t, rec))
}

func TestCheckEmail_BadInput(t *testing.T) {
	f := newFixture()

	rec := serve(f.accounts.CheckEmail, postJSON("/checkEmail", `{"email":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"success": false, "message": "Invalid JSON"}, decode(t, rec))

	rec = serve(f.accounts.CheckEmail, postJSON("/checkEmail", ``))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON", decode(t, rec)["message"])

	rec = serve(f.accounts.CheckEmail, postJSON("/checkEmail", `{"email":"   "}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.MsgEmailRequired, decode(t, rec)["message"])
}

func TestSignUpThenLogin(t *testing.T) {
	f := newFixture()

	rec := serve(f.accounts.SignUp, postJSON("/userSignUp", janeSignUp))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, service.MsgSignUpSuccess, body["message"])
	assert.Equal(t, "prime", body["account_type"])
	assert.Equal(t, "customer", body["area"])
	assert.NotEmpty(t, body["token"])
	authID := body["auth_id"].(float64)

	rec = serve(f.accounts.Login, postJSON("/login", `{"email":"jane@example.com","password":"hunter22"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decode(t, rec)
	assert.Equal(t, service.MsgLoginSuccess, body["message"])
	assert.Equal(t, authID, body["auth_id"])
	assert.Equal(t, "prime", body["account_type"])
	assert.Equal(t, "customer", body["area"])

	claims, err := utils.ParseSessionToken(testSecret, body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, model.AccountPrime, claims.AccountType)
}

func TestSignUp_Errors(t *testing.T) {
	f := newFixture()

	rec := serve(f.accounts.SignUp, postJSON("/userSignUp", `{"email":"a@b.c"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["message"], "Missing required fields")

	rec = serve(f.accounts.SignUp, postJSON("/userSignUp", strings.Replace(janeSignUp, `"prime"`, `"manager"`, 1)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.MsgInvalidAccountType, decode(t, rec)["message"])

	require.Equal(t, http.StatusOK, serve(f.accounts.SignUp, postJSON("/userSignUp", janeSignUp)).Code)
	rec = serve(f.accounts.SignUp, postJSON("/userSignUp", janeSignUp))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, map[string]any{"success": false, "message": service.MsgEmailTaken}, decode(t, rec))

	f.store.FailAt(memstore.StageAddress, errors.New("disk full"))
	rec = serve(f.accounts.SignUp, postJSON("/userSignUp", strings.Replace(janeSignUp, "Jane@", "other@", 1)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"success": false, "message": service.MsgQueryFailed}, decode(t, rec))
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture()
	f.store.AddEmployee("clerk@snailmail.test", "pw", "clerk")
	f.store.AddCredential("orphan@snailmail.test", "pw")

	cases := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"missing password", `{"email":"clerk@snailmail.test"}`, http.StatusBadRequest, service.MsgCredentialsRequired},
		{"unknown email", `{"email":"nobody@x.y","password":"pw"}`, http.StatusBadRequest, service.MsgInvalidCredentials},
		{"wrong password", `{"email":"clerk@snailmail.test","password":"nope"}`, http.StatusBadRequest, service.MsgInvalidCredentials},
		{"no profile", `{"email":"orphan@snailmail.test","password":"pw"}`, http.StatusInternalServerError, service.MsgAccountTypeNotFound},
		{"bad json", `not json`, http.StatusBadRequest, "Invalid JSON"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(f.accounts.Login, postJSON("/login", tc.body))
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.msg, decode(t, rec)["message"])
		})
	}

	rec := serve(f.accounts.Login, postJSON("/login", `{"email":"clerk@snailmail.test","password":"pw"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "employee", decode(t, rec)["area"])
}

func TestGetCustomerData(t *testing.T) {
	f := newFixture()
	rec := serve(f.accounts.SignUp, postJSON("/userSignUp", janeSignUp))
	require.Equal(t, http.StatusOK, rec.Code)
	authID := int(decode(t, rec)["auth_id"].(float64))

	get := func(q string) *httptest.ResponseRecorder {
		return serve(f.customers.GetCustomerData, httptest.NewRequest(http.MethodGet, "/getCustomerData"+q, nil))
	}

	rec = get("?authId=" + strconv.Itoa(authID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	cust := body["customer"].(map[string]any)
	assert.Equal(t, "Jane", cust["first_name"])
	assert.Nil(t, cust["middle_name"])
	assert.Nil(t, cust["phone_number"])
	assert.Equal(t, "jane@example.com", cust["email"])
	assert.Equal(t, "TX", cust["state_name"])
	assert.NotContains(t, cust, "password")

	for _, q := range []string{"", "?authId=", "?authId=abc", "?authId=0", "?authId=-3"} {
		rec = get(q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Equal(t, service.MsgAuthIDRequired, decode(t, rec)["message"], q)
	}

	rec = get("?authId=999")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.MsgCustomerNotFound, decode(t, rec)["message"])
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	rec := serve(Health(pinger{}, logging.Discard()), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = serve(Health(pinger{err: errors.New("refused")}, logging.Discard()), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "db unavailable", rec.Body.String())
}

func TestErrorHandler(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		body     string
		textBody bool
	}{
		{"client", apperr.Client("bad"), http.StatusBadRequest, `{"success":false,"message":"bad"}`, false},
		{"timeout", apperr.FromDB(service.MsgQueryFailed, context.DeadlineExceeded), http.StatusServiceUnavailable,
			`{"success":false,"message":"` + apperr.TimeoutMessage + `"}`, false},
		{"wrapped apperr", errors.Wrap(apperr.Forbidden("Forbidden"), "route"), http.StatusForbidden,
			`{"success":false,"message":"Forbidden"}`, false},
		{"not found", echo.ErrNotFound, http.StatusNotFound, "URL not found", true},
		{"method not allowed", echo.ErrMethodNotAllowed, http.StatusNotFound, "URL not found", true},
		{"too large", echo.ErrStatusRequestEntityTooLarge, http.StatusRequestEntityTooLarge,
			`{"success":false,"message":"Request Entity Too Large"}`, false},
		{"unknown", errors.New("nil map write"), http.StatusInternalServerError,
			`{"error":"Internal server error","message":"unexpected error"}`, false},
		{"echo 500", echo.ErrInternalServerError, http.StatusInternalServerError,
			`{"error":"Internal server error","message":"unexpected error"}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.err
			rec := serve(func(echo.Context) error { return err }, httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, tc.status, rec.Code)
			if tc.textBody {
				assert.Equal(t, tc.body, rec.Body.String())
				assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMETextPlain)
				return
			}
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestErrorHandler_CommittedResponseIsLeftAlone(t *testing.T) {
	rec := serve(func(c echo.Context) error {
		_ = c.String(http.StatusOK, "partial")
		return errors.New("late failure")
	}, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
}
