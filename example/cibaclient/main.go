package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/riyada/openbanking-sandbox/dpop"
)

var (
	serverURL = flag.String("server", "http://localhost:3000", "sandbox base URL")
	clientID  = flag.String("client", "demo-client", "relying party client id")
	loginHint = flag.String("hint", "demo-user", "login hint identifying the end user")
	scope     = flag.String("scope", "accounts.read", "requested scope, space separated")
)

func main() {
	flag.Parse()

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		log.Fatalf("keygen: %v", err)
	}

	// Initiate the decoupled authentication request.
	initURL := *serverURL + "/auth/request"
	body, _ := json.Marshal(map[string]string{
		"client_id":  *clientID,
		"login_hint": *loginHint,
		"scope":      *scope,
	})
	req, _ := http.NewRequest(http.MethodPost, initURL, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-nonce", uuid.NewString())
	signProof(req, key)

	var initiated struct {
		AuthReqID string `json:"auth_req_id"`
		ExpiresIn int64  `json:"expires_in"`
		Interval  int64  `json:"interval"`
	}
	if err := doJSON(req, http.StatusAccepted, &initiated); err != nil {
		log.Fatalf("initiate: %v", err)
	}
	log.Printf("auth_req_id=%s expires_in=%d interval=%d", initiated.AuthReqID, initiated.ExpiresIn, initiated.Interval)
	log.Printf("approve out of band: curl -XPOST %s/mock/approve -d '{\"auth_req_id\":\"%s\"}'", *serverURL, initiated.AuthReqID)

	// Poll the token endpoint at the advertised interval.
	tokenURL := *serverURL + "/auth/token"
	var tokens struct {
		Status      string `json:"status"`
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		Scope       string `json:"scope"`
	}
	for {
		time.Sleep(time.Duration(initiated.Interval) * time.Second)
		body, _ := json.Marshal(map[string]string{"auth_req_id": initiated.AuthReqID})
		req, _ := http.NewRequest(http.MethodPost, tokenURL, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		signProof(req, key)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.Fatalf("poll: %v", err)
		}
		payload, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusAccepted {
			log.Printf("pending, polling again in %ds", initiated.Interval)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			log.Fatalf("token endpoint: %d %s", resp.StatusCode, payload)
		}
		if err := json.Unmarshal(payload, &tokens); err != nil {
			log.Fatalf("token payload: %v", err)
		}
		break
	}
	log.Printf("access token issued, expires_in=%d scope=%q", tokens.ExpiresIn, tokens.Scope)

	// Call a protected resource with the bound token and a fresh proof.
	req, _ = http.NewRequest(http.MethodGet, *serverURL+"/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	signProof(req, key)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("accounts: %v", err)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("accounts: %d %s", resp.StatusCode, payload)
	}
	fmt.Println(string(payload))
}

// signProof attaches a fresh possession proof for the request's method and
// URL. Proofs are single use so one is minted per request.
func signProof(req *http.Request, key ed25519.PrivateKey) {
	proof, err := dpop.SignProof(key, req.Method, req.URL.String())
	if err != nil {
		log.Fatalf("sign proof: %v", err)
	}
	req.Header.Set(dpop.HeaderName, proof)
}

func doJSON(req *http.Request, want int, out any) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		return fmt.Errorf("status %d: %s", resp.StatusCode, payload)
	}
	return json.Unmarshal(payload, out)
}
