//go:build ignore

// This script obtains a Google OAuth token for aide and writes it where
// the server looks for one (~/.aide/google-token.json by default).
//
// Run with: go run scripts/get-google-token.go <credentials.json> [output-path]
//
// It requests the scopes aide actually uses: calendar events, gmail read,
// and gmail send. Supports both Desktop and Web Application credentials.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run scripts/get-google-token.go <credentials.json> [output-path]")
		os.Exit(1)
	}

	credFile := os.Args[1]
	outPath := defaultTokenPath()
	if len(os.Args) > 2 {
		outPath = os.Args[2]
	}

	credBytes, err := os.ReadFile(credFile)
	if err != nil {
		fmt.Printf("Error reading credentials: %v\n", err)
		os.Exit(1)
	}

	scopes := []string{
		calendar.CalendarEventsScope,
		gmail.GmailReadonlyScope,
		gmail.GmailSendScope,
	}

	config, err := google.ConfigFromJSON(credBytes, scopes...)
	if err != nil {
		fmt.Printf("Error parsing credentials: %v\n", err)
		os.Exit(1)
	}

	// Loopback redirect on a dynamic port (Desktop OAuth standard)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fmt.Printf("Error finding available port: %v\n", err)
		os.Exit(1)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()
	config.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d", port)

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			if errMsg := r.URL.Query().Get("error"); errMsg != "" {
				errChan <- fmt.Errorf("oauth error: %s", errMsg)
				http.Error(w, "Authorization failed: "+errMsg, http.StatusBadRequest)
			}
			// Might be favicon or other request, ignore
			return
		}
		codeChan <- code
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html><html><body style="font-family:system-ui;text-align:center;padding-top:20vh"><h1>Connected</h1><p>You can close this window and return to the terminal.</p></body></html>`)
	})

	server := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", port), Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	defer server.Shutdown(context.Background())

	authURL := config.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Println("\n=== Google OAuth Setup ===")
	fmt.Printf("\nUsing redirect URI: %s\n", config.RedirectURL)
	fmt.Println("\nOpening browser for authentication...")

	if err := openBrowser(authURL); err != nil {
		fmt.Println("\nCould not open browser automatically.")
		fmt.Println("Please open this URL manually:")
		fmt.Println(authURL)
	}

	fmt.Println("\nWaiting for authorization...")

	var code string
	select {
	case code = <-codeChan:
		fmt.Println("\nAuthorization received!")
	case err := <-errChan:
		fmt.Printf("\nError: %v\n", err)
		os.Exit(1)
	case <-time.After(5 * time.Minute):
		fmt.Println("\nTimeout waiting for authorization")
		os.Exit(1)
	}

	token, err := config.Exchange(context.Background(), code)
	if err != nil {
		fmt.Printf("Error exchanging code: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0700); err != nil {
		fmt.Printf("Error creating token dir: %v\n", err)
		os.Exit(1)
	}
	data, _ := json.MarshalIndent(token, "", "  ")
	if err := os.WriteFile(outPath, data, 0600); err != nil {
		fmt.Printf("Error writing token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nToken written to %s\n", outPath)
	fmt.Println("Restart 'aide serve' to pick it up.")
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "google-token.json"
	}
	return filepath.Join(home, ".aide", "google-token.json")
}

// openBrowser opens a URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		if _, err := exec.LookPath("xdg-open"); err == nil {
			cmd = exec.Command("xdg-open", url)
		} else if _, err := exec.LookPath("sensible-browser"); err == nil {
			cmd = exec.Command("sensible-browser", url)
		} else {
			return fmt.Errorf("no browser found")
		}
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform")
	}
	return cmd.Start()
}
