package scs

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panyam/monexa/client"
)

func TestStorage_PersistsAcrossRequests(t *testing.T) {
	sm := scs.New()
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		st := NewStorage(sm, r.Context())
		store := client.NewCredentialStore(st)
		if err := store.SetTokens("a", exp, "r", exp.Add(time.Hour)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		st.RenewToken()
	})
	mux.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		store := client.NewCredentialStore(NewStorage(sm, r.Context()))
		if !store.IsAuthenticated() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, store.AccessToken())
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		client.NewCredentialStore(NewStorage(sm, r.Context())).ClearTokens()
	})

	srv := httptest.NewServer(sm.LoadAndSave(mux))
	defer srv.Close()

	jar, _ := cookiejar.New(nil)
	hc := &http.Client{Jar: jar}

	resp, err := hc.Get(srv.URL + "/whoami")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = hc.Get(srv.URL + "/login")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = hc.Get(srv.URL + "/whoami")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a", string(body))

	resp, err = hc.Get(srv.URL + "/logout")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = hc.Get(srv.URL + "/whoami")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStorage_Prefix(t *testing.T) {
	sm := scs.New()
	ctx, err := sm.Load(context.Background(), "")
	require.NoError(t, err)

	st := NewStorage(sm, ctx).WithPrefix("acct1:")
	require.NoError(t, st.SetItems(map[string]string{client.KeyAccessToken: "x"}))

	assert.Equal(t, "x", sm.GetString(ctx, "acct1:"+client.KeyAccessToken))
	_, ok, _ := NewStorage(sm, ctx).GetItem(client.KeyAccessToken)
	assert.False(t, ok)
}
