package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"plant-doctor/api/internal/plant/types"
)

// maxPhotoBytes caps a downloaded photo; Telegram bots cannot fetch files over 20 MB.
const maxPhotoBytes = 20 << 20

func diagnosisRequest(dataURL, caption string) types.DiagnosisRequest {
	return types.DiagnosisRequest{PhotoDataURI: dataURL, Description: caption}
}

func download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxPhotoBytes {
		return nil, fmt.Errorf("photo is larger than %d bytes", maxPhotoBytes)
	}
	return b, nil
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
