package drafting

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go/option"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roxtor/backend/internal/domain"
)

func sampleRequest() Request {
	return Request{
		Text:         "Hola, soy Ana, quiero 12 franelas y 2 gorras",
		BusinessName: "ROXTOR",
		Tone:         "profesional",
		Rate:         decimal.RequireFromString("36.5"),
		Products: []domain.Product{
			{ID: "p1", Name: "FRANELA MICRODURAZNO", PriceRetail: decimal.NewFromInt(8), PriceWholesale: decimal.RequireFromString("5.5")},
		},
		PagoMovil: &domain.PagoMovil{Bank: "BANESCO", IDNumber: "J-1", Phone: "04141234567"},
	}
}

func TestPromptCarriesCatalogAndRules(t *testing.T) {
	prompt := Prompt(sampleRequest())

	assert.Contains(t, prompt, "FRANELA MICRODURAZNO: detal 8.00 / mayor 5.50")
	assert.Contains(t, prompt, "Banco BANESCO")
	assert.Contains(t, prompt, "Tasa BCV: 36.5")
	assert.Contains(t, prompt, "tono profesional")
	assert.Contains(t, prompt, "quiero 12 franelas")

	req := sampleRequest()
	req.Rate = decimal.Zero
	req.PagoMovil = nil
	prompt = Prompt(req)
	assert.Contains(t, prompt, "No hay tasa BCV registrada")
	assert.Contains(t, prompt, "no registrados")
}

func TestParseOutput(t *testing.T) {
	draft, err := parseOutput(`{"bcv_rate":36.5,"items_detected":[{"name":" Franela ","qty":12,"subtotal_usd":66}],"total_usd":66,"total_bs":2409,"suggested_reply":"Listo","customer_name":"Ana"}`)
	require.NoError(t, err)

	require.Len(t, draft.ItemsDetected, 1)
	assert.Equal(t, "Franela", draft.ItemsDetected[0].Name)
	assert.True(t, draft.ItemsDetected[0].SubtotalUSD.Equal(decimal.NewFromInt(66)))
	assert.True(t, draft.BCVRate.Equal(decimal.RequireFromString("36.5")))
	assert.Equal(t, "Ana", draft.CustomerName)

	_, err = parseOutput("")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = parseOutput("not json")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDraftSchemaIsStrict(t *testing.T) {
	schema, err := draftSchema()
	require.NoError(t, err)

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, false, schema["additionalProperties"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, name := range []string{"bcv_rate", "items_detected", "total_usd", "total_bs", "suggested_reply", "customer_name"} {
		assert.Contains(t, props, name)
	}
}

func TestAgentCallsResponsesAPI(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		text, _ := json.Marshal(`{"bcv_rate":36.5,"items_detected":[{"name":"GORRA TRUCKER","qty":2,"subtotal_usd":24}],"total_usd":24,"total_bs":876,"suggested_reply":"ok","customer_name":"Ana"}`)
		_, _ = w.Write([]byte(`{"id":"resp_1","object":"response","status":"completed","output":[{"type":"message","id":"msg_1","role":"assistant","status":"completed","content":[{"type":"output_text","annotations":[],"text":` + string(text) + `}]}]}`))
	}))
	defer srv.Close()

	agent, err := NewAgent("test-key", "", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	require.NoError(t, err)

	draft, err := agent.Draft(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "GORRA TRUCKER", draft.ItemsDetected[0].Name)
	assert.Equal(t, DefaultModel, body["model"])
}

func TestAgentFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	agent, err := NewAgent("test-key", "gpt-4o-mini", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = agent.Draft(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrUnavailable)
}

type countingDrafter struct {
	calls int
	err   error
}

func (d *countingDrafter) Draft(context.Context, Request) (domain.Draft, error) {
	d.calls++
	if d.err != nil {
		return domain.Draft{}, d.err
	}
	return domain.Draft{CustomerName: "ANA"}, nil
}

type mapCache map[string]domain.Draft

func (m mapCache) Get(_ context.Context, key string) (*domain.Draft, bool, error) {
	d, ok := m[key]
	if !ok {
		return nil, false, nil
	}
	return &d, true, nil
}

func (m mapCache) Set(_ context.Context, key string, value *domain.Draft, _ time.Duration) error {
	m[key] = *value
	return nil
}

func TestCachedReusesDrafts(t *testing.T) {
	next := &countingDrafter{}
	c := Cached{Next: next, Cache: mapCache{}, TTL: time.Minute}

	for i := 0; i < 3; i++ {
		draft, err := c.Draft(context.Background(), sampleRequest())
		require.NoError(t, err)
		assert.Equal(t, "ANA", draft.CustomerName)
	}
	assert.Equal(t, 1, next.calls)

	req := sampleRequest()
	req.Rate = decimal.NewFromInt(40)
	_, err := c.Draft(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedDoesNotStoreFailures(t *testing.T) {
	store := mapCache{}
	c := Cached{Next: &countingDrafter{err: errors.New("down")}, Cache: store}

	_, err := c.Draft(context.Background(), sampleRequest())
	assert.Error(t, err)
	assert.Empty(t, store)
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Draft(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrUnavailable)
}
