// Package storage moves image and artifact blobs through the time-limited
// SAS URLs issued by the Freta service. Authorization lives in the SAS
// query string, so the blob clients carry no credential of their own.
package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
)

// Upload writes a local file to the blob addressed by the SAS URL.
func Upload(ctx context.Context, sasURL, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	client, err := blockblob.NewClientWithNoCredential(sasURL, nil)
	if err != nil {
		return fmt.Errorf("create blob client: %w", err)
	}

	if _, err := client.UploadFile(ctx, f, nil); err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	return nil
}

// Download copies the blob addressed by the SAS URL into a local file.
func Download(ctx context.Context, sasURL, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	client, err := blockblob.NewClientWithNoCredential(sasURL, nil)
	if err != nil {
		return fmt.Errorf("create blob client: %w", err)
	}

	if _, err := client.DownloadFile(ctx, f, nil); err != nil {
		return fmt.Errorf("download blob: %w", err)
	}
	return nil
}
