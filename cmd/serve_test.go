package main

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/schema-engine/internal/config"
	"github.com/sells-group/schema-engine/internal/model"
)

func serveConfig() config.ServerConfig {
	return config.ServerConfig{Port: 8080, RateLimit: 1000, RateBurst: 1000, CORSOrigins: []string{"*"}}
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

const assessBody = `{
  "instrument": {"instrument_name": "ysq", "instrument_version": "3"},
  "items": [
    {"id": "a1", "schema_id": "abandonment_instability", "raw": 5},
    {"id": "a2", "schema_id": "abandonment_instability", "raw": 5},
    {"id": "a3", "schema_id": "abandonment_instability", "raw": 5},
    {"id": "d1", "schema_id": "Defectiveness/Shame", "raw": 4},
    {"id": "d2", "schema_id": "Defectiveness/Shame", "raw": 4},
    {"id": "d3", "schema_id": "Defectiveness/Shame", "raw": 4}
  ]
}`

func TestRouter_Health(t *testing.T) {
	h := buildRouter(newTestEnv(t, false), serveConfig())

	rr := doRequest(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_Normalize(t *testing.T) {
	h := buildRouter(newTestEnv(t, false), serveConfig())

	rr := doRequest(t, h, http.MethodPost, "/v1/normalize", `{
		"instrument": {"instrument_name": "ysq", "instrument_version": "3"},
		"items": [{"id": "x", "schema_id": "failure", "raw": 2.5}, {"id": "y", "schema_id": "unknown", "raw": 1}]
	}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res struct {
		Items    []model.NormalizedItem `json:"items"`
		Failures []model.ItemFailure    `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.Len(t, res.Items, 1)
	assert.InDelta(t, 45.0, res.Items[0].TScore, 1e-9)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "InvalidSchemaId", res.Failures[0].Code)
}

func TestRouter_NormalizeNoValidItems(t *testing.T) {
	h := buildRouter(newTestEnv(t, false), serveConfig())

	rr := doRequest(t, h, http.MethodPost, "/v1/normalize", `{
		"instrument": {"instrument_name": "ysq"},
		"items": [{"id": "x", "schema_id": "failure", "tscore": 95}]
	}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var body apiError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "NoValidItems", body.Code)
	require.Len(t, body.Failures, 1)
	assert.Equal(t, "OutOfRangeTScore", body.Failures[0].Code)
}

func TestRouter_Assess(t *testing.T) {
	h := buildRouter(newTestEnv(t, false), serveConfig())

	rr := doRequest(t, h, http.MethodPost, "/v1/assessments", assessBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var a model.Assessment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &a))
	require.NotNil(t, a.Selection.Primary)
	assert.Equal(t, model.SchemaID("abandonment_instability"), a.Selection.Primary.ClinicalID)
	require.NotNil(t, a.Selection.Secondary)
	assert.Equal(t, model.SchemaID("defectiveness_shame"), a.Selection.Secondary.ClinicalID)
	assert.Empty(t, rr.Header().Get("X-Result-Id"))
}

func TestRouter_AssessSaveAndFetch(t *testing.T) {
	h := buildRouter(newTestEnv(t, true), serveConfig())

	rr := doRequest(t, h, http.MethodPost, "/v1/assessments?save=true&label=client-9", assessBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	id := rr.Header().Get("X-Result-Id")
	require.NotEmpty(t, id)

	rr = doRequest(t, h, http.MethodGet, "/v1/results/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var rec model.ResultRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, model.ResultKindAssessment, rec.Kind)
	assert.Equal(t, "client-9", rec.Label)
	assert.Equal(t, "abandonment_instability", rec.Summary)

	rr = doRequest(t, h, http.MethodGet, "/v1/results?kind=assessment", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var recs []model.ResultRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	assert.Len(t, recs, 1)

	rr = doRequest(t, h, http.MethodGet, "/v1/results/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_SaveWithoutStore(t *testing.T) {
	h := buildRouter(newTestEnv(t, false), serveConfig())

	rr := doRequest(t, h, http.MethodPost, "/v1/assessments?save=true", assessBody)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = doRequest(t, h, http.MethodGet, "/v1/results/abc", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouter_ScoreModes(t *testing.T) {
	h := buildRouter(newTestEnv(t, false), serveConfig())

	rr := doRequest(t, h, http.MethodPost, "/v1/modes/score",
		`{"z": {"punitiveness": 2.0}, "gates": {"criticism": 1}, "tau": 1.0}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var out model.ScoringOutput
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, 1.0, out.Tau)
	require.NotEmpty(t, out.Modes)
	assert.Equal(t, model.ModeID("punitive_parent"), out.Modes[0].Mode)
}

func TestRouter_ErrorMapping(t *testing.T) {
	h := buildRouter(newTestEnv(t, false), serveConfig())

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown schema", "/v1/modes/score", `{"z": {"nonexistent_schema": 1}}`, http.StatusUnprocessableEntity, "UnknownIdentifier"},
		{"gate out of range", "/v1/modes/score", `{"z": {}, "gates": {"criticism": 2}}`, http.StatusUnprocessableEntity, "OutOfRangeGate"},
		{"bad tau", "/v1/modes/score", `{"z": {}, "tau": -1}`, http.StatusUnprocessableEntity, "InvalidTemperature"},
		{"malformed json", "/v1/modes/score", `{"z": `, http.StatusBadRequest, ""},
		{"unknown field", "/v1/assessments", `{"itemz": []}`, http.StatusBadRequest, ""},
		{"no valid items", "/v1/assessments", `{"instrument": {"instrument_name": "ysq"}, "items": [{"id": "q", "schema_id": "failure"}]}`, http.StatusUnprocessableEntity, "NoValidItems"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			var body apiError
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestRouter_RateLimit(t *testing.T) {
	sc := serveConfig()
	sc.RateLimit = 0.001
	sc.RateBurst = 1
	h := buildRouter(newTestEnv(t, false), sc)

	body := `{"z": {"failure": 1}}`
	rr := doRequest(t, h, http.MethodPost, "/v1/modes/score", body)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, h, http.MethodPost, "/v1/modes/score", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// Health is outside the limited group.
	rr = doRequest(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	h := buildRouter(newTestEnv(t, false), serveConfig())

	req := httptest.NewRequest(http.MethodOptions, "/v1/modes/score", bytes.NewReader(nil))
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestWriteJSONStatus_UnencodableBody(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSONStatus(rr, http.StatusOK, map[string]float64{"p": math.NaN()})

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var body apiError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)
}

func TestRouter_ScoreModesOverflow(t *testing.T) {
	h := buildRouter(newTestEnv(t, false), serveConfig())

	rr := doRequest(t, h, http.MethodPost, "/v1/modes/score",
		`{"z": {"punitiveness": 1e308, "defectiveness_shame": 1e308}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())

	rr = doRequest(t, h, http.MethodPost, "/v1/modes/score",
		`{"z": {"punitiveness": 2.0}, "gates": {"criticism": 1}, "tau": 1e-310}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var out model.ScoringOutput
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, model.ModeID("punitive_parent"), out.Modes[0].Mode)
}
