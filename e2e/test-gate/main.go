package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	if len(os.Args) < 3 {
		log.Fatalf("Usage: %s <team-id> <user-oid> [server-addr]", os.Args[0])
	}

	teamID := os.Args[1]
	userOID := os.Args[2]
	serverAddr := "http://localhost:8080"
	if len(os.Args) > 3 {
		serverAddr = "http://localhost" + os.Args[3]
	}

	secret := os.Getenv("TEAMS_GATE_AUTH_JWT_SECRET")
	if secret == "" {
		log.Fatal("TEAMS_GATE_AUTH_JWT_SECRET must be set")
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"oid": userOID,
		"iss": os.Getenv("TEAMS_GATE_AUTH_JWT_ISSUER"),
		"exp": time.Now().Add(5 * time.Minute).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	payload, err := json.Marshal(map[string]string{"teamId": teamID, "title": "e2e check"})
	if err != nil {
		log.Fatalf("Failed to encode body: %v", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	fmt.Println("→ body-addressed request")
	send(client, token, http.MethodPost, serverAddr+"/api/meetings", payload)

	fmt.Println("\n→ query-addressed request")
	send(client, token, http.MethodDelete, serverAddr+"/api/meetings/e2e?teamId="+url.QueryEscape(teamID), nil)
}

func send(client *http.Client, token, method, target string, payload []byte) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, target, body)
	if err != nil {
		log.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}

	switch resp.StatusCode {
	case http.StatusForbidden:
		fmt.Printf("❌ Team membership DENIED\n")
		fmt.Printf("Body: %s\n", string(respBody))
	case http.StatusUnauthorized:
		fmt.Printf("❌ Token REJECTED\n")
		fmt.Printf("Body: %s\n", string(respBody))
	default:
		fmt.Println("✅ Team membership GRANTED")
		fmt.Printf("Upstream status: %d\n", resp.StatusCode)

		for k, v := range resp.Header {
			if strings.HasPrefix(strings.ToLower(k), "x-") {
				fmt.Printf("  %s: %s\n", k, strings.Join(v, ", "))
			}
		}
	}
}
