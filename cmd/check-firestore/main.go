// Command check-firestore prints one cached backup document and the fields the refresh
// pipeline relies on.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/platform/config"
	firestoreclient "github.com/amBITionV2/Crazy-developers-527A-AI-09/internal/platform/firestore"
)

func main() {
	collection := flag.String("collection", "backup_blood_banks", "cache collection to read")
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatalf("usage: check-firestore [-collection name] <external_id>")
	}
	docID := flag.Arg(0)

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	ctx := context.Background()
	client, _, err := firestoreclient.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer client.Close()

	doc, err := client.Collection(*collection).Doc(docID).Get(ctx)
	if err != nil {
		log.Fatalf("Failed to get document: %v", err)
	}

	fmt.Printf("Document ID: %s/%s\n", *collection, docID)
	fmt.Printf("Document exists: %v\n\n", doc.Exists())

	data := doc.Data()
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal: %v", err)
	}
	fmt.Println("Full document data:")
	fmt.Println(string(jsonData))

	fmt.Printf("\n=== Generation fields ===\n")
	for _, field := range []string{"source", "is_active", "scraped_at", "last_updated", "validated_at"} {
		if v, ok := data[field]; ok {
			fmt.Printf("%s: '%v' (type: %T)\n", field, v, v)
		} else {
			fmt.Printf("%s: DOES NOT EXIST in Firestore\n", field)
		}
	}
}
