package enclave

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benhaq/sui-nautilus/pkg/config"
	"github.com/benhaq/sui-nautilus/pkg/encoding"
	"github.com/benhaq/sui-nautilus/pkg/fhir"
	"github.com/benhaq/sui-nautilus/pkg/identity"
	"github.com/benhaq/sui-nautilus/pkg/keycache"
	"github.com/benhaq/sui-nautilus/pkg/seal"
	"github.com/benhaq/sui-nautilus/pkg/seal/tibe"
	"github.com/benhaq/sui-nautilus/pkg/session"
	"github.com/benhaq/sui-nautilus/pkg/types"
	"github.com/benhaq/sui-nautilus/pkg/walrus"
)

// fakeKeyServer releases its shares for whatever scope the policy check
// authorizes, whitelist checks covering the fixture's bootstrap scopes.
type fakeKeyServer struct {
	t               *testing.T
	authority       *tibe.Authority
	index           int
	bootstrapScopes [][]byte
}

func (s *fakeKeyServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req types.FetchKeyRequest
	require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))

	txBytes, err := base64.StdEncoding.DecodeString(req.PTB)
	require.NoError(s.t, err)
	tx, err := encoding.DecodeTransaction(txBytes)
	require.NoError(s.t, err)

	var scopes [][]byte
	if tx.Call.Function == "seal_approve_enclaves" {
		scopes = s.bootstrapScopes
	} else {
		d := encoding.NewDecoder(tx.Inputs[0].Value)
		scopes = [][]byte{d.ReadBytes()}
		require.NoError(s.t, d.Err())
	}

	var out types.FetchKeyResponse
	for _, scope := range scopes {
		c0, c1, err := s.authority.EncryptShareTo(req.EncKey, s.authority.ExtractShare(s.index, scope))
		require.NoError(s.t, err)
		out.DecryptionKeys = append(out.DecryptionKeys, types.DecryptionKey{
			ID:           scope,
			EncryptedKey: types.EncryptedShare{C0: c0, C1: c1},
		})
	}
	require.NoError(s.t, json.NewEncoder(w).Encode(&out))
}

// fakeTransformer derives a fixed structured document from any raw record.
type fakeTransformer struct {
	doc    []byte
	called int
}

func (f *fakeTransformer) Transform(_ context.Context, _ []byte) ([]byte, error) {
	f.called++
	return f.doc, nil
}

type fixture struct {
	suite     *tibe.Suite
	authority *tibe.Authority
	material  *identity.Material
	servers   []types.Address
	app       *App
	host      *httptest.Server
	public    *httptest.Server
	client    *seal.Client
	blobs     map[string][]byte
	transform *fakeTransformer
}

func testAddr(b byte) types.Address {
	var a [32]byte
	a[31] = b
	return types.Address(a)
}

func newFixture(t *testing.T, bootstrapScopes [][]byte) *fixture {
	t.Helper()
	suite := tibe.NewSuite()
	authority, err := suite.NewAuthority(2, 3)
	require.NoError(t, err)
	material, err := identity.NewMaterial(suite, nil)
	require.NoError(t, err)

	f := &fixture{
		suite:     suite,
		authority: authority,
		material:  material,
		blobs:     map[string][]byte{},
		transform: &fakeTransformer{},
	}

	resolver := seal.StaticResolver{}
	commitments := map[types.Address][]byte{}
	for i := 0; i < 3; i++ {
		addr := testAddr(byte(i + 1))
		srv := httptest.NewServer(&fakeKeyServer{
			t: t, authority: authority, index: i, bootstrapScopes: bootstrapScopes,
		})
		t.Cleanup(srv.Close)
		resolver[addr] = srv.URL
		f.servers = append(f.servers, addr)
		raw, err := authority.Commitment(i).MarshalBinary()
		require.NoError(t, err)
		commitments[addr] = raw
	}

	verifier, err := seal.NewVerifier(suite, commitments)
	require.NoError(t, err)
	f.client = seal.NewClient(f.servers, resolver, 5*time.Second)
	engine := seal.NewEngine(seal.EngineParams{
		Suite:             suite,
		Cache:             keycache.New(),
		Client:            f.client,
		Verifier:          verifier,
		Material:          material,
		PackageID:         testAddr(0xaa),
		PolicyModule:      "seal_policy",
		WhitelistModule:   "seal_whitelist",
		CertificateTTLMin: 30,
	})

	aggregator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		blob, ok := f.blobs[r.URL.Path[len("/v1/blobs/"):]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(blob)
	}))
	t.Cleanup(aggregator.Close)

	f.app = NewApp(AppParams{
		Config:      &config.Config{Environment: config.Development},
		Material:    material,
		Engine:      engine,
		Sessions:    session.NewManager(5 * time.Minute),
		Blobs:       walrus.NewClient(aggregator.URL, 5*time.Second, 1, nil),
		Transformer: f.transform,
	})
	f.host = httptest.NewServer(f.app.HostHandler())
	t.Cleanup(f.host.Close)
	f.public = httptest.NewServer(f.app.PublicHandler())
	t.Cleanup(f.public.Close)
	return f
}

func postJSON(t *testing.T, url string, body, out any) int {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// bootstrap runs the full operator-mediated key load against the fixture's
// fake servers.
func (f *fixture) bootstrap(t *testing.T) int {
	t.Helper()
	var initResp types.InitKeyLoadResponse
	status := postJSON(t, f.host.URL+"/admin/init_seal_key_load", types.InitKeyLoadRequest{
		EnclaveObjectID:      testAddr(0xcc),
		InitialSharedVersion: 9,
	}, &initResp)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, initResp.SessionID)

	encoded, err := hex.DecodeString(initResp.EncodedRequest)
	require.NoError(t, err)
	req, err := encoding.DecodeFetchKeyRequest(encoded)
	require.NoError(t, err)
	responses, err := f.client.FetchKeys(context.Background(), req)
	require.NoError(t, err)

	var completeResp types.CompleteKeyLoadResponse
	status = postJSON(t, f.host.URL+"/admin/complete_seal_key_load", types.CompleteKeyLoadRequest{
		SessionID:     initResp.SessionID,
		SealResponses: hex.EncodeToString(encoding.EncodeServerResponses(responses)),
	}, &completeResp)
	require.Equal(t, http.StatusOK, status)
	return completeResp.ScopesCached
}

func (f *fixture) encryptObject(t *testing.T, scope, plaintext []byte) *types.EncryptedObject {
	t.Helper()
	encapsulation, ciphertext, err := f.suite.Encrypt(scope, f.authority.MasterPublic(), plaintext)
	require.NoError(t, err)

	services := make([]types.ServiceShare, len(f.servers))
	for i, addr := range f.servers {
		services[i] = types.ServiceShare{Address: addr, Index: f.authority.ShareIndex(i)}
	}
	return &types.EncryptedObject{
		Version:       types.EncryptedObjectVersion,
		ID:            scope,
		Services:      services,
		Threshold:     f.authority.Threshold(),
		Encapsulation: encapsulation,
		Ciphertext:    ciphertext,
	}
}

func TestPing(t *testing.T) {
	f := newFixture(t, nil)
	resp, err := http.Get(f.host.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBootstrapAndProvisionAPIKey(t *testing.T) {
	apiScope := []byte("api-key-scope")
	f := newFixture(t, [][]byte{apiScope})

	assert.Equal(t, 1, f.bootstrap(t))

	obj := f.encryptObject(t, apiScope, []byte("sk-or-v1-secret\n"))
	var provResp types.ProvisionAPIKeyResponse
	status := postJSON(t, f.host.URL+"/admin/provision_api_key", types.ProvisionAPIKeyRequest{
		EncryptedObject: hex.EncodeToString(encoding.EncodeEncryptedObject(obj)),
	}, &provResp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", provResp.Status)

	key, err := f.app.APIKey()
	require.NoError(t, err)
	assert.Equal(t, "sk-or-v1-secret", key)

	var health map[string]any
	resp, err := http.Get(f.public.URL + "/health_check")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, true, health["api_key_provisioned"])
	assert.Equal(t, float64(1), health["scopes_cached"])
}

func TestProvisionAPIKeyUnprovisionedScope(t *testing.T) {
	f := newFixture(t, nil)

	obj := f.encryptObject(t, []byte("never-loaded"), []byte("sk"))
	status := postJSON(t, f.host.URL+"/admin/provision_api_key", types.ProvisionAPIKeyRequest{
		EncryptedObject: hex.EncodeToString(encoding.EncodeEncryptedObject(obj)),
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestCompleteKeyLoadUnknownSession(t *testing.T) {
	f := newFixture(t, nil)
	status := postJSON(t, f.host.URL+"/admin/complete_seal_key_load", types.CompleteKeyLoadRequest{
		SessionID:     "no-such-session",
		SealResponses: "00",
	}, nil)
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestCompleteKeyLoadIsSingleUse(t *testing.T) {
	scope := []byte("scope-a")
	f := newFixture(t, [][]byte{scope})

	var initResp types.InitKeyLoadResponse
	require.Equal(t, http.StatusOK, postJSON(t, f.host.URL+"/admin/init_seal_key_load",
		types.InitKeyLoadRequest{EnclaveObjectID: testAddr(0xcc)}, &initResp))

	encoded, err := hex.DecodeString(initResp.EncodedRequest)
	require.NoError(t, err)
	req, err := encoding.DecodeFetchKeyRequest(encoded)
	require.NoError(t, err)
	responses, err := f.client.FetchKeys(context.Background(), req)
	require.NoError(t, err)
	body := types.CompleteKeyLoadRequest{
		SessionID:     initResp.SessionID,
		SealResponses: hex.EncodeToString(encoding.EncodeServerResponses(responses)),
	}

	assert.Equal(t, http.StatusOK, postJSON(t, f.host.URL+"/admin/complete_seal_key_load", body, nil))
	assert.Equal(t, http.StatusBadGateway, postJSON(t, f.host.URL+"/admin/complete_seal_key_load", body, nil))
}

func TestProcessDataSignedResponse(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.app.ProvisionAPIKey("sk-or-test"))

	var out types.ProcessedDataResponse[types.TimelineEntryResponse]
	status := postJSON(t, f.public.URL+"/process_data",
		types.ProcessDataRequest[types.TimelineEntryRequest]{Payload: types.TimelineEntryRequest{
			PatientRef:   "patient-1",
			EntryType:    1,
			Scope:        0,
			VisitDate:    "2026-08-01",
			Status:       "final",
			ContentHash:  "abcd",
			WalrusBlobID: "blob-1",
		}}, &out)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "procedure", out.Response.Data.EntryType)
	assert.Equal(t, "treatment", out.Response.Data.Scope)
	assert.Equal(t, f.material.Enclave.Address().String(), out.Response.Data.Validator)
	assert.Equal(t, types.IntentProcessData, out.Response.Intent)

	envelope := encoding.EncodeIntentEnvelope(out.Response.Intent, out.Response.TimestampMS,
		encoding.EncodeTimelineEntryResponse(&out.Response.Data))
	assert.True(t, ed25519.Verify(f.material.Enclave.PublicKey(), envelope, out.Signature))
}

func TestProcessDataRejectsIncomplete(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.app.ProvisionAPIKey("sk-or-test"))
	status := postJSON(t, f.public.URL+"/process_data",
		types.ProcessDataRequest[types.TimelineEntryRequest]{Payload: types.TimelineEntryRequest{
			PatientRef: "patient-1",
		}}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestProcessDataRequiresAPIKey(t *testing.T) {
	f := newFixture(t, nil)
	status := postJSON(t, f.public.URL+"/process_data",
		types.ProcessDataRequest[types.TimelineEntryRequest]{Payload: types.TimelineEntryRequest{
			PatientRef:   "patient-1",
			ContentHash:  "abcd",
			WalrusBlobID: "blob-1",
		}}, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestCreateTimelineIntent(t *testing.T) {
	scope := []byte("record-scope")
	f := newFixture(t, nil)

	doc := []byte(`{"resourceType":"Bundle","id":"b1"}`)
	f.blobs["blob-1"] = encoding.EncodeEncryptedObject(f.encryptObject(t, scope, doc))
	expected, err := fhir.SemanticFingerprint(doc)
	require.NoError(t, err)

	var out types.ProcessedDataResponse[types.TimelineEntryIntentPayload]
	status := postJSON(t, f.public.URL+"/create_timeline_intent", types.CreateTimelineIntentRequest{
		PolicyID:             testAddr(0xbb),
		InitialSharedVersion: 3,
		WalrusBlobID:         "blob-1",
		ExpectedSemanticHash: expected,
		PatientRefBytes:      types.HexBytes("patient-1"),
		ContentHash:          types.HexBytes{0x01, 0x02},
	}, &out)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "blob-1", out.Response.Data.WalrusBlobID)
	assert.Equal(t, types.IntentTimelineEntry, out.Response.Intent)
	envelope := encoding.EncodeIntentEnvelope(out.Response.Intent, out.Response.TimestampMS,
		encoding.EncodeTimelineIntentPayload(&out.Response.Data))
	assert.True(t, ed25519.Verify(f.material.Enclave.PublicKey(), envelope, out.Signature))
	assert.Equal(t, 0, f.transform.called, "structured records skip the transformer")
}

func TestCreateTimelineIntentDerivesRawRecords(t *testing.T) {
	scope := []byte("record-scope")
	f := newFixture(t, nil)

	derived := []byte(`{"resourceType":"Bundle","id":"derived"}`)
	f.transform.doc = derived
	f.blobs["blob-2"] = encoding.EncodeEncryptedObject(
		f.encryptObject(t, scope, []byte("raw clinical note, not JSON")))
	expected, err := fhir.SemanticFingerprint(derived)
	require.NoError(t, err)

	status := postJSON(t, f.public.URL+"/create_timeline_intent", types.CreateTimelineIntentRequest{
		PolicyID:             testAddr(0xbb),
		WalrusBlobID:         "blob-2",
		ExpectedSemanticHash: expected,
		PatientRefBytes:      types.HexBytes("patient-1"),
		ContentHash:          types.HexBytes{0x01},
	}, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, f.transform.called)
}

func TestCreateTimelineIntentHashMismatch(t *testing.T) {
	scope := []byte("record-scope")
	f := newFixture(t, nil)

	doc := []byte(`{"resourceType":"Bundle","id":"b1"}`)
	f.blobs["blob-1"] = encoding.EncodeEncryptedObject(f.encryptObject(t, scope, doc))

	status := postJSON(t, f.public.URL+"/create_timeline_intent", types.CreateTimelineIntentRequest{
		PolicyID:             testAddr(0xbb),
		WalrusBlobID:         "blob-1",
		ExpectedSemanticHash: "00ff00ff",
		PatientRefBytes:      types.HexBytes("patient-1"),
		ContentHash:          types.HexBytes{0x01},
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status,
		"a decryptable but mismatching record is an integrity failure, not a decrypt failure")
}

func TestCreateTimelineIntentMissingBlob(t *testing.T) {
	f := newFixture(t, nil)
	status := postJSON(t, f.public.URL+"/create_timeline_intent", types.CreateTimelineIntentRequest{
		PolicyID:             testAddr(0xbb),
		WalrusBlobID:         "missing",
		ExpectedSemanticHash: "00",
	}, nil)
	assert.Equal(t, http.StatusBadGateway, status)
}
