// Command hash-api-key derives the pbkdf2 credential hash for the gateway
// intake API key. The printed value is what the server expects in
// --api-key-hash or HEARINGVAULT_API_KEY_HASH.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"hearingvault/internal/auth"
)

func main() {
	var key string
	flag.StringVar(&key, "key", "", "API key to hash (read from stdin when omitted)")
	flag.Parse()

	if key == "" {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fatalf("read key from stdin: %v", err)
		}
		key = strings.TrimRight(line, "\r\n")
	}
	if strings.TrimSpace(key) == "" {
		fatalf("an API key is required")
	}
	if len(key) < 16 {
		fatalf("API key must be at least 16 characters")
	}

	hash, err := auth.HashAPIKey(key)
	if err != nil {
		fatalf("hash key: %v", err)
	}
	fmt.Println(hash)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
