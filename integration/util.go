//go:build integration
// +build integration

package integration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/bitrise-io/go-chunkupload/chunkuploader"
	"github.com/bitrise-io/go-utils/v2/log"
)

var logger = log.NewLogger()

func checksumOf(bytes []byte) string {
	hash := sha256.New()
	hash.Write(bytes)
	return hex.EncodeToString(hash.Sum(nil))
}

// receiver is an in-memory upload endpoint that stitches chunks back together by session.
type receiver struct {
	mu       sync.Mutex
	sessions map[string][][]byte
}

func newReceiver() *receiver {
	return &receiver{sessions: map[string][][]byte{}}
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	key := req.Header.Get(chunkuploader.HeaderFileKey)
	index, err := strconv.Atoi(req.Header.Get(chunkuploader.HeaderChunkIndex))
	if err != nil {
		http.Error(w, "invalid chunk index", http.StatusBadRequest)
		return
	}
	total, err := strconv.Atoi(req.Header.Get(chunkuploader.HeaderChunkTotal))
	if err != nil || index < 0 || index >= total {
		http.Error(w, "invalid chunk total", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	chunks, ok := r.sessions[key]
	if !ok {
		chunks = make([][]byte, total)
		r.sessions[key] = chunks
	}
	chunks[index] = body
	w.WriteHeader(http.StatusOK)
}

func (r *receiver) stitch(key string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chunks, ok := r.sessions[key]
	if !ok {
		return nil, fmt.Errorf("unknown session: %s", key)
	}
	var file []byte
	for i, chunk := range chunks {
		if chunk == nil {
			return nil, fmt.Errorf("missing chunk %d of session %s", i, key)
		}
		file = append(file, chunk...)
	}
	return file, nil
}
