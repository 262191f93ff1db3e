// ragctl is a thin CLI front-end for the ragcore HTTP surface. It maps
// upstream HTTP statuses to process exit codes so scripts can branch on
// outcome without parsing response bodies.
//
// Usage:
//
//	ragctl -base-url http://localhost:8080 status
//	ragctl search "termination clause"
//	ragctl ask "What is the notice period?"
//	ragctl upload contract.txt
//	ragctl documents
//	ragctl documents-clear
//	ragctl collections
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Exit codes, per the core's CLI contract.
const (
	exitSuccess             = 0
	exitGeneric             = 1
	exitInvalidArguments    = 2
	exitUpstreamUnavailable = 3
	exitNotFound            = 4
	exitConflict            = 5
)

func statusToExitCode(status int) int {
	switch {
	case status >= 200 && status < 300:
		return exitSuccess
	case status == http.StatusBadRequest:
		return exitInvalidArguments
	case status == http.StatusNotFound:
		return exitNotFound
	case status == http.StatusConflict:
		return exitConflict
	case status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return exitUpstreamUnavailable
	default:
		return exitGeneric
	}
}

func main() {
	baseURL := flag.String("base-url", envOr("RAGCTL_BASE_URL", "http://localhost:8080"), "ragcore server base URL")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: ragctl [-base-url URL] <status|search|ask|upload|documents|documents-clear|collections> [args...]")
		os.Exit(exitInvalidArguments)
	}

	client := &http.Client{Timeout: 120 * time.Second}
	cmd, rest := args[0], args[1:]

	var (
		code int
		err  error
	)
	switch cmd {
	case "status":
		code, err = doGet(client, *baseURL+"/status")
	case "documents":
		code, err = doGet(client, *baseURL+"/api/documents")
	case "documents-clear":
		code, err = doDelete(client, *baseURL+"/api/documents")
	case "collections":
		code, err = doGet(client, *baseURL+"/api/collections")
	case "search":
		if len(rest) < 1 {
			fmt.Fprintln(os.Stderr, "usage: ragctl search <query>")
			os.Exit(exitInvalidArguments)
		}
		code, err = doJSONPost(client, *baseURL+"/api/search", map[string]any{"query": rest[0]})
	case "ask":
		if len(rest) < 1 {
			fmt.Fprintln(os.Stderr, "usage: ragctl ask <question>")
			os.Exit(exitInvalidArguments)
		}
		code, err = doJSONPost(client, *baseURL+"/api/ask", map[string]any{"question": rest[0]})
	case "upload":
		if len(rest) < 1 {
			fmt.Fprintln(os.Stderr, "usage: ragctl upload <path> [-force]")
			os.Exit(exitInvalidArguments)
		}
		force := len(rest) > 1 && rest[1] == "-force"
		code, err = doUpload(client, *baseURL+"/api/process/upload", rest[0], force)
	default:
		fmt.Fprintf(os.Stderr, "ragctl: unknown command %q\n", cmd)
		os.Exit(exitInvalidArguments)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ragctl: %v\n", err)
		os.Exit(exitGeneric)
	}
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printResponse(resp *http.Response) (int, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(body))
	}

	return statusToExitCode(resp.StatusCode), nil
}

func doGet(client *http.Client, url string) (int, error) {
	resp, err := client.Get(url)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", url, err)
	}
	return printResponse(resp)
}

func doDelete(client *http.Client, url string) (int, error) {
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("DELETE %s: %w", url, err)
	}
	return printResponse(resp)
}

func doJSONPost(client *http.Client, url string, payload any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("POST %s: %w", url, err)
	}
	return printResponse(resp)
}

func doUpload(client *http.Client, url, path string, force bool) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return 0, err
	}
	if _, err := part.Write(data); err != nil {
		return 0, err
	}
	if force {
		mw.WriteField("force", "true")
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("POST %s: %w", url, err)
	}
	return printResponse(resp)
}
