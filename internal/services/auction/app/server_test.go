package server

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestServer_CreateGetAndListAuctionsRoundTrip(t *testing.T) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	t.Setenv("AUCTION_HOUSE_DB_PATH", t.TempDir()+"/auction.db")
	t.Setenv("AUCTION_HOUSE_GRANT_ISSUER", "https://grants.test")
	t.Setenv("AUCTION_HOUSE_GRANT_AUDIENCE", "auction-api")
	t.Setenv("AUCTION_HOUSE_GRANT_PUBLIC_KEY", base64.StdEncoding.EncodeToString(public))

	srv, err := NewWithAddr("127.0.0.1:0")
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(runCtx)
	}()
	t.Cleanup(func() {
		runCancel()
		select {
		case serveErr := <-serveDone:
			if serveErr != nil {
				t.Fatalf("serve: %v", serveErr)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for server shutdown")
		}
	})

	baseURL := "http://" + srv.Addr()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{
		Issuer:    "https://grants.test",
		Audience:  jwt.ClaimStrings{"auction-api"},
		Subject:   "alice",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		ID:        "grant-alice",
	})
	grant, err := token.SignedString(private)
	if err != nil {
		t.Fatalf("sign grant: %v", err)
	}

	body, err := json.Marshal(map[string]any{
		"title":         "Sunfall print",
		"category":      "Art",
		"start_time":    now.Add(-time.Minute).Format(time.RFC3339),
		"end_time":      now.Add(time.Hour).Format(time.RFC3339),
		"min_increment": 5,
	})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, baseURL+"/v1/auctions", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+grant)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create auction status = %d, want 201", resp.StatusCode)
	}
	var created struct {
		ID    string `json:"id"`
		Owner string `json:"owner"`
		Title string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Owner != "alice" {
		t.Fatalf("owner = %q, want alice", created.Owner)
	}

	getResp, err := http.Get(baseURL + "/v1/auctions/" + created.ID)
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("get auction status = %d, want 200", getResp.StatusCode)
	}
	var fetched struct {
		Title  string `json:"title"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(getResp.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if fetched.Title != "Sunfall print" || fetched.Status != "OPEN" {
		t.Fatalf("fetched = %+v, want Sunfall print/OPEN", fetched)
	}

	listResp, err := http.Get(baseURL + "/v1/auctions?limit=10")
	if err != nil {
		t.Fatalf("list auctions: %v", err)
	}
	defer listResp.Body.Close()
	var page struct {
		Auctions []json.RawMessage `json:"auctions"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&page); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(page.Auctions) != 1 {
		t.Fatalf("auctions len = %d, want 1", len(page.Auctions))
	}
}

func TestServerRequiresGrantConfig(t *testing.T) {
	t.Setenv("AUCTION_HOUSE_DB_PATH", t.TempDir()+"/auction.db")
	t.Setenv("AUCTION_HOUSE_GRANT_ISSUER", "")
	t.Setenv("AUCTION_HOUSE_GRANT_AUDIENCE", "")
	t.Setenv("AUCTION_HOUSE_GRANT_PUBLIC_KEY", "")

	if _, err := NewWithAddr("127.0.0.1:0"); err == nil {
		t.Fatal("expected error without grant configuration")
	}
}
