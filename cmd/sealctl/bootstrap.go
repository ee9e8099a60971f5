package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/benhaq/sui-nautilus/pkg/encoding"
	"github.com/benhaq/sui-nautilus/pkg/seal"
	"github.com/benhaq/sui-nautilus/pkg/types"
)

var (
	enclaveURL           string
	enclaveObjectID      string
	initialSharedVersion uint64
	keyServerSpecs       []string
	bootstrapTimeout     time.Duration
)

// NewBootstrapCmd creates the bootstrap command
func NewBootstrapCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "bootstrap",
		Short: "Run the operator side of the enclave key load",
		Long: "Ask the enclave for a signed fetch request, relay it to every key server, " +
			"and hand the collected responses back to the enclave",
		RunE: runBootstrap,
	}

	cmd.Flags().StringVar(&enclaveURL, "enclave-url", "http://127.0.0.1:3001", "Base URL of the enclave host server")
	cmd.Flags().StringVar(&enclaveObjectID, "enclave-object", "", "Enclave registration object ID (required)")
	cmd.Flags().Uint64Var(&initialSharedVersion, "initial-shared-version", 0, "Version at which the enclave object became shared")
	cmd.Flags().StringSliceVar(&keyServerSpecs, "key-server", nil, "Key server as <address>=<url>, repeatable (required)")
	cmd.Flags().DurationVar(&bootstrapTimeout, "timeout", 10*time.Second, "Per-request timeout")
	_ = cmd.MarkFlagRequired("enclave-object")
	_ = cmd.MarkFlagRequired("key-server")

	return cmd
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	objectID, err := types.AddressFromHex(enclaveObjectID)
	if err != nil {
		return fmt.Errorf("parse enclave object ID: %w", err)
	}
	servers, err := parseKeyServerSpecs(keyServerSpecs)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: bootstrapTimeout}

	var initResp types.InitKeyLoadResponse
	if err := postJSON(client, enclaveURL+"/admin/init_seal_key_load", types.InitKeyLoadRequest{
		EnclaveObjectID:      objectID,
		InitialSharedVersion: initialSharedVersion,
	}, &initResp); err != nil {
		return fmt.Errorf("init key load: %w", err)
	}
	fmt.Printf("Session %s started\n", initResp.SessionID)

	encoded, err := hex.DecodeString(initResp.EncodedRequest)
	if err != nil {
		return fmt.Errorf("decode enclave request: %w", err)
	}
	fetchReq, err := encoding.DecodeFetchKeyRequest(encoded)
	if err != nil {
		return fmt.Errorf("parse enclave request: %w", err)
	}

	// Relay to every server; a failing server is reported and skipped. The
	// enclave decides whether what came back is enough.
	var responses []types.ServerKeyResponse
	for addr, url := range servers {
		var fetchResp types.FetchKeyResponse
		if err := postJSON(client, url+seal.FetchKeyPath, fetchReq, &fetchResp); err != nil {
			fmt.Printf("key server %s failed: %v\n", addr, err)
			continue
		}
		responses = append(responses, types.ServerKeyResponse{Server: addr, Response: fetchResp})
		fmt.Printf("key server %s responded with %d keys\n", addr, len(fetchResp.DecryptionKeys))
	}
	if len(responses) == 0 {
		return fmt.Errorf("no key server responded")
	}

	var completeResp types.CompleteKeyLoadResponse
	if err := postJSON(client, enclaveURL+"/admin/complete_seal_key_load", types.CompleteKeyLoadRequest{
		SessionID:     initResp.SessionID,
		SealResponses: hex.EncodeToString(encoding.EncodeServerResponses(responses)),
	}, &completeResp); err != nil {
		return fmt.Errorf("complete key load: %w", err)
	}

	fmt.Printf("Key load %s: %d scopes cached\n", completeResp.Status, completeResp.ScopesCached)
	return nil
}

func parseKeyServerSpecs(specs []string) (map[types.Address]string, error) {
	servers := make(map[types.Address]string, len(specs))
	for _, spec := range specs {
		addrStr, url, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("invalid key server spec %q, want <address>=<url>", spec)
		}
		addr, err := types.AddressFromHex(addrStr)
		if err != nil {
			return nil, fmt.Errorf("invalid key server address in %q: %w", spec, err)
		}
		servers[addr] = strings.TrimRight(url, "/")
	}
	return servers, nil
}

func postJSON(client *http.Client, url string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, snippet)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
