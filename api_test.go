package monexa

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panyam/monexa/client"
	"github.com/panyam/monexa/internal/fakeapi"
)

const (
	testEmail    = "ana@example.com"
	testPassword = "password123"
)

type testEnv struct {
	api *Client
	srv *fakeapi.Server
	ts  *httptest.Server
}

func newTestEnv(t *testing.T, cfg fakeapi.Config, opts ...client.ClientOption) *testEnv {
	t.Helper()
	if cfg.JWTSecretKey == "" {
		cfg.JWTSecretKey = "test-secret"
	}
	srv := fakeapi.New(cfg)
	_, err := srv.CreateUser(testEmail, testPassword, "Ana")
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	store := client.NewCredentialStore(client.NewMemoryStorage())
	d := client.NewDispatcher(ts.URL+fakeapi.PathPrefix, store, opts...)
	return &testEnv{api: NewClient(d), srv: srv, ts: ts}
}

func (e *testEnv) login(t *testing.T) *LoginResult {
	t.Helper()
	result, err := e.api.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	return result
}

// expireAccessToken swaps the stored access token for one that has already expired
func (e *testEnv) expireAccessToken(t *testing.T, sessionID string) {
	t.Helper()
	token, exp, err := e.srv.IssueAccessToken(sessionID, -time.Minute)
	require.NoError(t, err)
	require.NoError(t, e.api.Store().SetAccessToken(token, exp))
}

func ptr[T any](v T) *T {
	return &v
}

func TestLogin_StoresSession(t *testing.T) {
	env := newTestEnv(t, fakeapi.Config{})

	result := env.login(t)
	assert.NotEmpty(t, result.SessionID)

	store := env.api.Store()
	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, result.AccessToken, store.AccessToken())
	assert.Equal(t, result.RefreshToken, store.RefreshToken())
	require.NotNil(t, store.User())
	assert.Equal(t, testEmail, store.User().Email)

	exp, ok := store.AccessTokenExpiry()
	require.True(t, ok)
	assert.True(t, exp.Equal(result.AccessTokenExpiresAt))
	assert.Equal(t, 0, env.srv.RenewCalls())
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t, fakeapi.Config{})

	_, err := env.api.Login(context.Background(), testEmail, "wrong-password")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid credentials", apiErr.Message)

	assert.False(t, env.api.Store().IsAuthenticated())
	assert.Equal(t, 0, env.srv.RenewCalls(), "auth endpoints never trigger renewal")
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, fakeapi.Config{})

	user, err := env.api.Register(context.Background(), RegisterRequest{
		Email:               "bo@example.com",
		Password:            "password123",
		Name:                "Bo",
		AcceptedDocumentIDs: []uint64{1, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bo", user.Name)
	assert.False(t, env.api.Store().IsAuthenticated(), "register does not sign in")

	_, err = env.api.Register(context.Background(), RegisterRequest{Email: "bo@example.com", Password: "password123"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	_, err = env.api.Login(context.Background(), "bo@example.com", "password123")
	assert.NoError(t, err)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, fakeapi.Config{})
	result := env.login(t)

	require.NoError(t, env.api.Logout(context.Background()))
	assert.False(t, env.api.Store().IsAuthenticated())
	assert.Nil(t, env.api.Store().User())

	// the server session is gone too
	require.NoError(t, env.api.Store().SetTokens("", time.Time{}, result.RefreshToken, result.RefreshTokenExpiresAt))
	assert.Error(t, env.api.Dispatcher().Renew(context.Background()))
}

func TestLogout_ServerUnreachable(t *testing.T) {
	env := newTestEnv(t, fakeapi.Config{})
	env.login(t)
	env.ts.Close()

	err := env.api.Logout(context.Background())
	assert.Error(t, err)
	assert.False(t, env.api.Store().IsAuthenticated(), "local credentials are cleared regardless")
}

func TestRecordsLifecycle(t *testing.T) {
	env := newTestEnv(t, fakeapi.Config{})
	env.login(t)
	ctx := context.Background()

	salary, err := env.api.CreateCategory(ctx, CategoryRequest{Name: ptr("Salary"), Type: ptr(Income)})
	require.NoError(t, err)
	food, err := env.api.CreateCategory(ctx, CategoryRequest{Name: ptr("Food"), Type: ptr(Expense), Color: ptr("#ff0000")})
	require.NoError(t, err)
	card, err := env.api.CreatePaymentMethod(ctx, "Card")
	require.NoError(t, err)
	cash, err := env.api.CreatePaymentMethod(ctx, "Cash")
	require.NoError(t, err)

	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	_, err = env.api.CreateRecord(ctx, RecordRequest{
		CategoryID: &salary.ID, PaymentMethodID: &card.ID, Amount: ptr(2000.0), Date: ptr(day),
	})
	require.NoError(t, err)
	lunch, err := env.api.CreateRecord(ctx, RecordRequest{
		CategoryID: &food.ID, PaymentMethodID: &cash.ID, Amount: ptr(15.5), Date: ptr(day.AddDate(0, 0, 1)),
		Description: ptr("Lunch"), Currency: ptr(EUR),
	})
	require.NoError(t, err)
	assert.Equal(t, EUR, lunch.Currency)

	records, err := env.api.ListRecords(ctx, RecordFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, lunch.ID, records[0].ID, "newest first by default")

	records, err = env.api.ListRecords(ctx, RecordFilter{PaymentMethodIDs: []uint64{cash.ID}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, lunch.ID, records[0].ID)

	records, err = env.api.ListRecords(ctx, RecordFilter{SortBy: SortByAmount, SortOrder: SortAsc, StartDate: day, EndDate: day.AddDate(0, 1, 0)})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 15.5, records[0].Amount)

	updated, err := env.api.UpdateRecord(ctx, lunch.ID, RecordRequest{Amount: ptr(20.0)})
	require.NoError(t, err)
	assert.Equal(t, 20.0, updated.Amount)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "Lunch", *updated.Description)
	assert.NotNil(t, updated.UpdatedAt)

	got, err := env.api.GetRecord(ctx, lunch.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, got.Amount)

	suggestions, err := env.api.DescriptionSuggestions(ctx, food.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lunch"}, suggestions)

	summary, err := env.api.RecordSummary(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1980.0, summary.Amount)
	assert.Equal(t, MKD, summary.Currency)

	stats, err := env.api.CategoryStatistics(ctx, StatisticsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2000.0, stats.TotalIncome)
	assert.Equal(t, 20.0, stats.TotalExpense)
	assert.Equal(t, 1980.0, stats.NetBalance)
	require.Len(t, stats.Categories, 2)
	require.NotNil(t, stats.Categories[1].Color)
	assert.Equal(t, "#ff0000", *stats.Categories[1].Color)

	require.NoError(t, env.api.DeleteRecord(ctx, lunch.ID))
	_, err = env.api.GetRecord(ctx, lunch.ID)
	assert.True(t, IsNotFound(err))
}

func TestCategoriesAndPaymentMethods(t *testing.T) {
	env := newTestEnv(t, fakeapi.Config{})
	env.login(t)
	ctx := context.Background()

	c, err := env.api.CreateCategory(ctx, CategoryRequest{Name: ptr("Rent"), Type: ptr(Expense)})
	require.NoError(t, err)
	c, err = env.api.UpdateCategory(ctx, c.ID, CategoryRequest{Description: ptr("monthly")})
	require.NoError(t, err)
	assert.Equal(t, "Rent", c.Name)
	require.NotNil(t, c.Description)

	categories, err := env.api.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 1)

	_, err = env.api.CreateCategory(ctx, CategoryRequest{Name: ptr("Bad"), Type: ptr(CategoryType("OTHER"))})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid category type", apiErr.Message)

	require.NoError(t, env.api.DeleteCategory(ctx, c.ID))
	_, err = env.api.GetCategory(ctx, c.ID)
	assert.True(t, IsNotFound(err))

	pm, err := env.api.CreatePaymentMethod(ctx, "Card")
	require.NoError(t, err)
	pm, err = env.api.UpdatePaymentMethod(ctx, pm.ID, "Debit card")
	require.NoError(t, err)
	assert.Equal(t, "Debit card", pm.Name)

	got, err := env.api.GetPaymentMethod(ctx, pm.ID)
	require.NoError(t, err)
	assert.Equal(t, "Debit card", got.Name)

	methods, err := env.api.ListPaymentMethods(ctx)
	require.NoError(t, err)
	assert.Len(t, methods, 1)

	require.NoError(t, env.api.DeletePaymentMethod(ctx, pm.ID))
	_, err = env.api.GetPaymentMethod(ctx, pm.ID)
	assert.True(t, IsNotFound(err))
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t, fakeapi.Config{})
	env.login(t)

	setting, err := env.api.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, English, setting.Language)
	assert.Equal(t, MKD, setting.Currency)

	setting, err = env.api.UpdateSettings(context.Background(), SettingRequest{Currency: ptr(USD)})
	require.NoError(t, err)
	assert.Equal(t, English, setting.Language)
	assert.Equal(t, USD, setting.Currency)

	_, err = env.api.UpdateSettings(context.Background(), SettingRequest{Language: ptr(Language("FR"))})
	assert.Error(t, err)
}

func TestUpdateUser_NotifiesSubscribers(t *testing.T) {
	env := newTestEnv(t, fakeapi.Config{})
	env.login(t)

	var names []string
	env.api.Store().Subscribe(func(u *User) {
		if u != nil {
			names = append(names, u.Name)
		}
	})

	user, err := env.api.UpdateUser(context.Background(), "Ana Maria")
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", user.Name)
	assert.Equal(t, []string{"Ana Maria"}, names)
	assert.Equal(t, "Ana Maria", env.api.Store().User().Name)

	current, err := env.api.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", current.Name)
}

func TestExportData(t *testing.T) {
	env := newTestEnv(t, fakeapi.Config{})
	env.login(t)
	ctx := context.Background()

	c, err := env.api.CreateCategory(ctx, CategoryRequest{Name: ptr("Food"), Type: ptr(Expense)})
	require.NoError(t, err)
	pm, err := env.api.CreatePaymentMethod(ctx, "Cash")
	require.NoError(t, err)
	_, err = env.api.CreateRecord(ctx, RecordRequest{
		CategoryID: &c.ID, PaymentMethodID: &pm.ID, Amount: ptr(12.0),
		Date: ptr(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)), Description: ptr("Bread"),
	})
	require.NoError(t, err)

	export, err := env.api.ExportData(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	defer export.Close()

	assert.True(t, strings.HasPrefix(export.Filename, "monexa-export-"))
	assert.True(t, strings.HasSuffix(export.Filename, ".csv"))

	data, err := io.ReadAll(export)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2024-01-02,Food,Cash,12.00,MKD,Bread", lines[1])
}

func TestReactiveRenewal(t *testing.T) {
	env := newTestEnv(t, fakeapi.Config{})
	env.login(t)
	before := env.api.Store().AccessToken()

	env.srv.RejectNext(1)
	_, err := env.api.ListCategories(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, env.srv.RenewCalls())
	assert.NotEqual(t, before, env.api.Store().AccessToken())
}

func TestProactiveRenewal(t *testing.T) {
	env := newTestEnv(t, fakeapi.Config{AccessTokenTTL: time.Hour})
	env.login(t)

	_, err := env.api.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, env.srv.RenewCalls(), "a token inside the refresh threshold is renewed before sending")
}

func TestSingleRenewalForConcurrentRequests(t *testing.T) {
	env := newTestEnv(t, fakeapi.Config{})
	result := env.login(t)
	env.expireAccessToken(t, result.SessionID)
	env.srv.SetRenewDelay(100 * time.Millisecond)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.api.ListCategories(context.Background()); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), failures.Load())
	assert.Equal(t, 1, env.srv.RenewCalls())
	assert.False(t, env.api.Store().IsAccessTokenExpired())
}

func TestForcedLogout(t *testing.T) {
	env := newTestEnv(t, fakeapi.Config{})
	result := env.login(t)

	var ended []string
	env.api.Dispatcher().OnSessionEnded(func(loginURL string) { ended = append(ended, loginURL) })

	env.expireAccessToken(t, result.SessionID)
	env.srv.SetRenewStatus(http.StatusUnauthorized)

	_, err := env.api.ListRecords(context.Background(), RecordFilter{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrTokenRefreshFailed), "got %v", err)
	assert.Equal(t, []string{client.DefaultLoginURL}, ended)
	assert.False(t, env.api.Store().IsAuthenticated())
	assert.Equal(t, 0, env.srv.ProtectedCalls(), "nothing is sent with a dead token")
}

func TestChangePassword_RevokesRenewal(t *testing.T) {
	env := newTestEnv(t, fakeapi.Config{})
	result := env.login(t)
	ctx := context.Background()

	err := env.api.ChangePassword(ctx, ChangePasswordRequest{
		CurrentPassword: testPassword, NewPassword: "newpassword1", ConfirmPassword: "mismatch",
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "passwords do not match", apiErr.Message)

	require.NoError(t, env.api.ChangePassword(ctx, ChangePasswordRequest{
		CurrentPassword: testPassword, NewPassword: "newpassword1", ConfirmPassword: "newpassword1",
	}))

	// the live access token keeps working
	_, err = env.api.Settings(ctx)
	require.NoError(t, err)

	// but the session cannot be renewed once it runs out
	env.expireAccessToken(t, result.SessionID)
	_, err = env.api.Settings(ctx)
	assert.ErrorIs(t, err, client.ErrTokenRefreshFailed)
	assert.False(t, env.api.Store().IsAuthenticated())

	_, err = env.api.Login(ctx, testEmail, "newpassword1")
	assert.NoError(t, err)
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t, fakeapi.Config{})
	env.login(t)

	require.NoError(t, env.api.DeleteAccount(context.Background()))
	assert.False(t, env.api.Store().IsAuthenticated())

	_, err := env.api.Login(context.Background(), testEmail, testPassword)
	assert.True(t, IsUnauthorized(err))
}

func TestRecordFilterValues(t *testing.T) {
	f := RecordFilter{
		StartDate:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CategoryID:       4,
		PaymentMethodIDs: []uint64{1, 2},
		Search:           "coffee",
		SortBy:           SortByAmount,
		SortOrder:        SortDesc,
	}
	q := f.Values()
	assert.Equal(t, "2024-01-01T00:00:00Z", q.Get("startDate"))
	assert.Empty(t, q.Get("endDate"))
	assert.Equal(t, "4", q.Get("categoryId"))
	assert.Equal(t, []string{"1", "2"}, q["paymentMethodIds"])
	assert.Equal(t, "coffee", q.Get("search"))
	assert.Equal(t, "amount", q.Get("sortBy"))
	assert.Equal(t, "desc", q.Get("sortOrder"))

	assert.Empty(t, RecordFilter{}.Values())
}
