package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"peerdrop/internal/client"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "peerdrop server URL")
	session := flag.String("session", "", "existing session id (a new session is opened when empty)")
	name := flag.String("name", "Anonymous", "display name for a new session")
	description := flag.String("description", "", "upload description (10-1000 characters)")
	category := flag.String("category", "", "upload category: audio, document, code, text, image, archive")
	consent := flag.Bool("consent", false, "consent to AI analysis of the content")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: peerdrop [flags] <file>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	req := client.UploadRequest{
		FilePath:    flag.Arg(0),
		Description: *description,
		Category:    *category,
		AIConsent:   *consent,
	}
	if err := req.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	c := client.New(*server, *session)

	if *session == "" {
		sid, err := c.OpenSession(ctx, *name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Session opened: %s (keep it to reuse your account)\n", sid)
	}

	result, err := c.Upload(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Uploaded as %s (+%d XP)\n", result.UploadID, result.XPEarned)
	if result.Message != "" {
		fmt.Println(result.Message)
	}
}
