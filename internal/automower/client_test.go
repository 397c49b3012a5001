package automower

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mowerListBody = `{"data":[
	{"id":"id-front","type":"mower","attributes":{"system":{"name":"Front","model":"450X"}}},
	{"id":"id-back","type":"mower","attributes":{"system":{"name":"Back","model":"315"}}}
]}`

func mowerDetailBody(id, name, state string, battery int) string {
	return fmt.Sprintf(`{"data":{"id":%q,"type":"mower","attributes":{
		"system":{"name":%q,"model":"450X"},
		"battery":{"batteryPercent":%d},
		"mower":{"mode":"MAIN_AREA","activity":"MOWING","state":%q,"errorCode":0},
		"positions":[{"latitude":57.7,"longitude":14.1},{"latitude":57.6,"longitude":14.0}],
		"settings":{"cuttingHeight":4,"headlight":{"mode":"EVENING_ONLY"}}
	}}}`, id, name, battery, state)
}

type recordedCall struct {
	method string
	path   string
	body   string
	auth   string
	agent  string
}

// fakeAPI serves the token endpoint and the mower endpoints
type fakeAPI struct {
	server *httptest.Server

	mu            sync.Mutex
	calls         []recordedCall
	tokenCount    int
	tokenStatus   int
	statuses      map[string]int
	bodies        map[string]string
	tokenLifetime int
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{
		statuses:      map[string]int{},
		bodies:        map[string]string{},
		tokenLifetime: 3600,
	}
	api.bodies["GET /v1/mowers"] = mowerListBody
	api.bodies["GET /v1/mowers/id-front"] = mowerDetailBody("id-front", "Front", "OK", 80)
	api.bodies["GET /v1/mowers/id-back"] = mowerDetailBody("id-back", "Back", "OFF", 100)

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.tokenCount++
		n := api.tokenCount
		status := api.tokenStatus
		lifetime := api.tokenLifetime
		api.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			w.Write([]byte(`{"message":"invalid client"}`))
			return
		}
		fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":%d,"provider":"husqvarna","scope":"iam:read amc:api"}`, n, lifetime)
	})
	mux.HandleFunc("/v1/", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		key := r.Method + " " + r.URL.Path

		api.mu.Lock()
		api.calls = append(api.calls, recordedCall{
			method: r.Method,
			path:   r.URL.Path,
			body:   string(data),
			auth:   r.Header.Get("Authorization"),
			agent:  r.Header.Get("User-Agent"),
		})
		status := api.statuses[key]
		body, ok := api.bodies[key]
		api.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			w.Write([]byte(`{"errors":[{"title":"Rejected","detail":"by test"}]}`))
			return
		}
		if !ok {
			if r.Method == http.MethodPost {
				w.WriteHeader(http.StatusAccepted)
				return
			}
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"errors":[{"title":"Not Found","detail":"no such resource"}]}`))
			return
		}
		w.Header().Set("Content-Type", ContentTypeAPI)
		w.Write([]byte(body))
	})

	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) setStatus(key string, status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statuses[key] = status
}

func (a *fakeAPI) setBody(key, body string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bodies[key] = body
}

func (a *fakeAPI) recorded() []recordedCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]recordedCall, len(a.calls))
	copy(out, a.calls)
	return out
}

func (a *fakeAPI) tokens() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tokenCount
}

func withClock(now func() time.Time) Option {
	return func(c *clientConfig) { c.now = now }
}

func withSleep(sleep func(time.Duration)) Option {
	return func(c *clientConfig) { c.sleep = sleep }
}

func newTestClient(api *fakeAPI, opts ...Option) *Client {
	base := []Option{
		WithBaseURL(api.server.URL + "/v1"),
		WithTokenURL(api.server.URL + "/oauth2/token"),
		WithHTTPClient(api.server.Client()),
		withSleep(func(time.Duration) {}),
	}
	return NewClient("app-key", "app-secret", append(base, opts...)...)
}

func loadedClient(t *testing.T, api *fakeAPI, opts ...Option) *Client {
	t.Helper()
	c := newTestClient(api, opts...)
	require.NoError(t, c.GetMowers())
	t.Cleanup(c.Close)
	return c
}

func TestNewClient_NoNetworkUntilFirstOperation(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(api)
	defer c.Close()

	assert.False(t, c.Authenticated())
	assert.Equal(t, 0, api.tokens())
	assert.Equal(t, "app-key", c.APIKey())

	require.NoError(t, c.Authenticate())
	assert.True(t, c.Authenticated())
	assert.Equal(t, 1, api.tokens())
}

func TestGetMowers(t *testing.T) {
	api := newFakeAPI(t)
	c := loadedClient(t, api)

	mowers := c.Mowers()
	require.Len(t, mowers, 2)
	assert.Equal(t, "id-front", mowers[0].ID)
	assert.Equal(t, "Front", mowers[0].Name)
	assert.Equal(t, "Back", mowers[1].Name)
	assert.Nil(t, mowers[0].BatteryPercent, "detail fields stay empty until GetMowersInfo")
	assert.False(t, c.LastMowerListUpdate().IsZero())
	assert.Empty(t, c.LastError())

	calls := api.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "Bearer token-1", calls[0].auth)
}

func TestClient_UserAgent(t *testing.T) {
	api := newFakeAPI(t)
	loadedClient(t, api, WithUserAgent("mowerctl/test"))

	calls := api.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "mowerctl/test", calls[0].agent)
}

func TestGetMowers_ReplacesRecords(t *testing.T) {
	api := newFakeAPI(t)
	c := loadedClient(t, api)

	api.setBody("GET /v1/mowers", `{"data":[{"id":"id-side","type":"mower","attributes":{"system":{"name":"Side"}}}]}`)
	require.NoError(t, c.GetMowers())

	mowers := c.Mowers()
	require.Len(t, mowers, 1)
	assert.Equal(t, "Side", mowers[0].Name)
}

func TestGetMowers_Failure(t *testing.T) {
	api := newFakeAPI(t)
	api.setStatus("GET /v1/mowers", http.StatusUnauthorized)
	c := newTestClient(api)
	defer c.Close()

	err := c.GetMowers()
	require.Error(t, err)
	assert.Contains(t, c.LastError(), "(Unknown - 401) Rejected: by test")
	assert.Empty(t, c.Mowers())
	assert.False(t, c.APILimitReached())
}

func TestGetMowersInfo(t *testing.T) {
	api := newFakeAPI(t)
	c := loadedClient(t, api)

	require.NoError(t, c.GetMowersInfo())

	front, ok := c.MowerByName("Front")
	require.True(t, ok)
	require.NotNil(t, front.BatteryPercent)
	assert.Equal(t, 80, *front.BatteryPercent)
	assert.Equal(t, "MOWING", front.Activity)
	assert.Equal(t, StateOK, front.State)
	assert.Equal(t, 4, front.CuttingHeight)
	assert.Equal(t, "EVENING_ONLY", front.Headlight)
	require.NotNil(t, front.Location)
	assert.Equal(t, Position{Latitude: 57.7, Longitude: 14.1}, *front.Location)
	assert.Empty(t, front.ErrorState)

	off, found := c.IsMowerOff("Back")
	assert.True(t, found)
	assert.True(t, off)
	assert.False(t, c.AreAllMowersOff())

	// one list call plus one detail call per mower, all with the same token
	calls := api.recorded()
	require.Len(t, calls, 3)
	for _, call := range calls {
		assert.Equal(t, "Bearer token-1", call.auth)
	}
	assert.Equal(t, 1, api.tokens())
}

func TestGetMowersInfo_ErrorState(t *testing.T) {
	api := newFakeAPI(t)
	api.setBody("GET /v1/mowers/id-front", `{"data":{"id":"id-front","type":"mower","attributes":{
		"mower":{"state":"ERROR","activity":"STOPPED_IN_GARDEN","errorCode":3}}}}`)
	c := loadedClient(t, api)

	require.NoError(t, c.GetMowersInfo())

	front, _ := c.MowerByName("Front")
	assert.Equal(t, StateError, front.State)
	require.NotNil(t, front.ErrorCode)
	assert.Equal(t, 3, *front.ErrorCode)
	assert.Equal(t, ErrorDescription(3), front.ErrorState)
	assert.NotEmpty(t, front.ErrorState)
	assert.Nil(t, front.Location)
}

func TestGetMowersInfo_StopsAtFirstFailure(t *testing.T) {
	api := newFakeAPI(t)
	api.setStatus("GET /v1/mowers/id-front", http.StatusNotFound)
	c := loadedClient(t, api)

	err := c.GetMowersInfo()
	require.Error(t, err)
	assert.Contains(t, c.LastError(), "(Front - 404)")

	back, _ := c.MowerByName("Back")
	assert.Empty(t, back.State, "mowers after the failing one are not refreshed")
}

func TestGetMowersInfo_RateLimited(t *testing.T) {
	api := newFakeAPI(t)
	c := loadedClient(t, api)

	api.setStatus("GET /v1/mowers/id-front", http.StatusTooManyRequests)
	err := c.GetMowersInfo()

	assert.True(t, IsRateLimit(err))
	assert.True(t, c.APILimitReached())
	assert.Contains(t, c.LastError(), "429")

	api.setStatus("GET /v1/mowers/id-front", 0)
	require.NoError(t, c.GetMowersInfo())
	assert.False(t, c.APILimitReached())
	assert.Empty(t, c.LastError())
}

func TestGetMowersInfo_MissingData(t *testing.T) {
	api := newFakeAPI(t)
	api.setBody("GET /v1/mowers/id-front", `{"meta":{}}`)
	c := loadedClient(t, api)

	err := c.GetMowersInfo()
	assert.True(t, IsParseError(err))
	assert.Contains(t, c.LastError(), "(Front) Mower detail has no data")
}

func TestGetMowersInfo_SkipsRecordsWithoutName(t *testing.T) {
	api := newFakeAPI(t)
	api.setBody("GET /v1/mowers", `{"data":[
		{"id":"id-front","type":"mower","attributes":{"system":{"name":"Front"}}},
		{"id":"id-ghost","type":"mower","attributes":{"system":{}}}
	]}`)
	c := loadedClient(t, api)

	err := c.GetMowersInfo()
	require.Error(t, err)

	front, _ := c.MowerByName("Front")
	assert.Equal(t, StateOK, front.State, "valid records are still refreshed")
	for _, call := range api.recorded() {
		assert.NotEqual(t, "/v1/mowers/id-ghost", call.path)
	}
}

func TestActions(t *testing.T) {
	tests := []struct {
		name string
		run  func(c *Client) error
		want string
	}{
		{"park until next schedule", func(c *Client) error { return c.ParkUntilNextSchedule("Front") }, `{"data":{"type":"ParkUntilNextSchedule"}}`},
		{"park until further notice", func(c *Client) error { return c.ParkUntilFurtherNotice("Front") }, `{"data":{"type":"ParkUntilFurtherNotice"}}`},
		{"pause", func(c *Client) error { return c.Pause("Front") }, `{"data":{"type":"Pause"}}`},
		{"resume schedule", func(c *Client) error { return c.ResumeSchedule("Front") }, `{"data":{"type":"ResumeSchedule"}}`},
		{"start", func(c *Client) error { return c.Start("Front", 90) }, `{"data":{"type":"Start","attributes":{"duration":90}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			c := loadedClient(t, api)

			require.NoError(t, tt.run(c))

			calls := api.recorded()
			last := calls[len(calls)-1]
			assert.Equal(t, http.MethodPost, last.method)
			assert.Equal(t, "/v1/mowers/id-front/actions", last.path)
			assert.JSONEq(t, tt.want, last.body)
		})
	}
}

func TestSettings(t *testing.T) {
	api := newFakeAPI(t)
	c := loadedClient(t, api)

	require.NoError(t, c.SetHeadlight("Back", true))
	require.NoError(t, c.SetHeadlight("Back", false))
	require.NoError(t, c.SetCuttingHeight("Back", 6))

	calls := api.recorded()[1:]
	require.Len(t, calls, 3)
	for _, call := range calls {
		assert.Equal(t, "/v1/mowers/id-back/settings", call.path)
	}
	assert.JSONEq(t, `{"data":{"type":"settings","attributes":{"headlight":{"mode":"ALWAYS_ON"}}}}`, calls[0].body)
	assert.JSONEq(t, `{"data":{"type":"settings","attributes":{"headlight":{"mode":"ALWAYS_OFF"}}}}`, calls[1].body)
	assert.JSONEq(t, `{"data":{"type":"settings","attributes":{"cuttingHeight":6}}}`, calls[2].body)
}

func TestCommands_Validation(t *testing.T) {
	api := newFakeAPI(t)
	c := loadedClient(t, api)
	before := len(api.recorded())

	tests := []struct {
		name string
		run  func() error
	}{
		{"zero duration", func() error { return c.Start("Front", 0) }},
		{"negative duration", func() error { return c.Start("Front", -5) }},
		{"height too low", func() error { return c.SetCuttingHeight("Front", 0) }},
		{"height too high", func() error { return c.SetCuttingHeight("Front", 10) }},
		{"unknown action", func() error { return c.SendAction("Front", Action("Dance"), 0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			apiErr, ok := asAPIError(err)
			require.True(t, ok, "expected *APIError, got %v", err)
			assert.Equal(t, ErrTypeValidation, apiErr.Type)
			assert.Equal(t, err.Error(), c.LastError())
		})
	}

	assert.Len(t, api.recorded(), before, "invalid commands must not reach the API")
}

func TestCommands_UnknownMower(t *testing.T) {
	api := newFakeAPI(t)
	c := loadedClient(t, api)
	before := len(api.recorded())

	err := c.Pause("Nowhere")
	assert.True(t, IsNotFound(err))
	assert.Contains(t, c.LastError(), `"Nowhere"`)

	_, err = c.GetMowerMessages("Nowhere")
	assert.True(t, IsNotFound(err))

	assert.Len(t, api.recorded(), before)
}

func TestGetMowerMessages(t *testing.T) {
	api := newFakeAPI(t)
	api.setBody("GET /v1/mowers/id-front/messages", `{"data":{"type":"messages","attributes":{"messages":[{"time":1700000000,"code":3,"severity":"ERROR"}]}}}`)
	c := loadedClient(t, api)

	body, err := c.GetMowerMessages("Front")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Contains(t, doc, "data")
}

func TestClient_TokenRenewalAcrossOperations(t *testing.T) {
	api := newFakeAPI(t)
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	c := loadedClient(t, api, withClock(func() time.Time { return now }))

	require.NoError(t, c.GetMowersInfo())
	assert.Equal(t, 1, api.tokens())

	now = now.Add(3001 * time.Second)
	require.NoError(t, c.Pause("Front"))
	assert.Equal(t, 2, api.tokens())

	calls := api.recorded()
	assert.Equal(t, "Bearer token-2", calls[len(calls)-1].auth)
}

func TestGetMowers_StampsInjectedClock(t *testing.T) {
	api := newFakeAPI(t)
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	c := loadedClient(t, api, withClock(func() time.Time { return now }))

	assert.Equal(t, now, c.LastMowerListUpdate())

	now = now.Add(time.Minute)
	require.NoError(t, c.GetMowers())
	assert.Equal(t, now, c.LastMowerListUpdate())
}

func TestNewClient_DefaultClientDoesNotFollowRedirects(t *testing.T) {
	var movedHits int
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"token-1","token_type":"Bearer","expires_in":3600,"provider":"husqvarna"}`)
	})
	mux.HandleFunc("/v1/mowers", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/moved", http.StatusFound)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		movedHits++
		mu.Unlock()
		fmt.Fprint(w, mowerListBody)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := NewClient("app-key", "app-secret",
		WithBaseURL(server.URL+"/v1"),
		WithTokenURL(server.URL+"/oauth2/token"),
		withSleep(func(time.Duration) {}),
	)
	defer c.Close()

	err := c.GetMowers()
	require.Error(t, err)
	assert.Contains(t, c.LastError(), "HTTP error (302) not specifically handled")
	assert.Empty(t, c.Mowers())

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, movedHits)
}

func TestClient_AuthenticationFailure(t *testing.T) {
	api := newFakeAPI(t)
	api.tokenStatus = http.StatusBadRequest
	c := newTestClient(api)
	defer c.Close()

	err := c.GetMowers()
	assert.True(t, IsAuthError(err))
	assert.False(t, c.Authenticated())
	assert.True(t, strings.Contains(c.LastError(), "invalid client"), "LastError() = %q", c.LastError())
	assert.Empty(t, api.recorded(), "no mower request without a token")
}

func TestClient_ForbiddenRetriedWithBackoff(t *testing.T) {
	api := newFakeAPI(t)
	var waits []time.Duration
	c := loadedClient(t, api, withSleep(func(d time.Duration) { waits = append(waits, d) }))

	api.setStatus("POST /v1/mowers/id-front/actions", http.StatusForbidden)
	err := c.ParkUntilFurtherNotice("Front")

	require.Error(t, err)
	assert.Equal(t, []time.Duration{4 * time.Second, 6 * time.Second}, waits)

	posts := 0
	for _, call := range api.recorded() {
		if call.method == http.MethodPost {
			posts++
		}
	}
	assert.Equal(t, 3, posts)
	assert.Contains(t, c.LastError(), "(Front - 403)")
}

func TestAreAllMowersOff(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(api)
	defer c.Close()

	assert.True(t, c.AreAllMowersOff(), "true when no mowers are known")

	api.setBody("GET /v1/mowers/id-front", mowerDetailBody("id-front", "Front", "OFF", 10))
	require.NoError(t, c.GetMowers())
	require.NoError(t, c.GetMowersInfo())
	assert.True(t, c.AreAllMowersOff())

	_, found := c.IsMowerOff("Nowhere")
	assert.False(t, found)
}

func TestClient_CloseTwice(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(api)

	assert.NotPanics(t, func() {
		c.Close()
		c.Close()
	})
}
