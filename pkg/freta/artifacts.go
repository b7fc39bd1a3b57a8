package freta

import (
	"context"
	"fmt"
	"net/http"
)

// ArtifactsService retrieves the output files produced by image analysis.
type ArtifactsService struct {
	client *Client
}

// List returns the artifact filenames associated with an image.
func (s *ArtifactsService) List(ctx context.Context, imageID, ownerID string) ([]string, error) {
	ownerID, err := s.client.ownerOrSelf(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	s.client.logger.Debug("list artifacts", "image_id", imageID, "owner_id", ownerID)

	var names []string
	body := map[string]string{"owner_id": ownerID, "image_id": imageID}
	if err := s.client.backend.RequestInto(ctx, http.MethodPost, "list_artifacts", body, nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// url resolves the time-limited download URL for one artifact.
func (s *ArtifactsService) url(ctx context.Context, imageID, filename, ownerID string) (string, error) {
	ownerID, err := s.client.ownerOrSelf(ctx, ownerID)
	if err != nil {
		return "", err
	}
	s.client.logger.Debug("artifact url", "image_id", imageID, "filename", filename, "owner_id", ownerID)

	body := map[string]string{
		"owner_id": ownerID,
		"image_id": imageID,
		"filename": filename,
	}
	var resp artifactURL
	if err := s.client.backend.RequestInto(ctx, http.MethodPost, "get_artifact", body, nil, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("service did not provide a url for artifact %s", filename)
	}
	return resp.URL, nil
}

// Get fetches the content of one artifact into memory.
func (s *ArtifactsService) Get(ctx context.Context, imageID, filename, ownerID string) ([]byte, error) {
	url, err := s.url(ctx, imageID, filename, ownerID)
	if err != nil {
		return nil, err
	}
	return s.client.backend.GetURL(ctx, url)
}

// Download writes the content of one artifact to a local file. Large
// artifacts (full reports, extracted memory regions) should prefer this
// over Get.
func (s *ArtifactsService) Download(ctx context.Context, imageID, filename, ownerID, dest string) error {
	url, err := s.url(ctx, imageID, filename, ownerID)
	if err != nil {
		return err
	}
	return s.client.blobDownload(ctx, url, dest)
}
