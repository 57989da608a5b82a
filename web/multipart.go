/*
 * Copyright 2025 GraphPipe Labs and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package web

import (
	"fmt"
	"io"
	"net/http"

	"github.com/golang/glog"

	"github.com/graphpipe-io/graphpipe/schema"
)

// Incremental delivery over multipart/mixed, negotiated by the client's
// Accept header.  The boundary is the single dash used by the reference
// clients for @defer/@stream responses.
const (
	multipartBoundary    = "-"
	multipartContentType = `multipart/mixed; boundary="-"; deferSpec=20220824`
)

// serveMultipart pulls the operation's frame sequence and writes each frame
// as one multipart part, flushing as it goes so the initial result reaches
// the client before any deferred field resolves.  The stream is closed on
// every exit path: normal termination at a hasNext:false frame, producer
// failure, and client disconnect mid-stream, so no producer is ever left
// dangling.
func (gh *graphqlHandler) serveMultipart(w http.ResponseWriter, r *http.Request, gqlReq *schema.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		// Can't stream on this connection; degrade to one JSON response.
		write(w, gh.resolver.Resolve(r.Context(), gqlReq), false)
		return
	}

	ctx := r.Context()
	stream := gh.resolver.ResolveStream(ctx, gqlReq)
	defer stream.Close()

	w.Header().Set("Content-Type", multipartContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for {
		frame, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			// The producer failed between frames.  Terminate the sequence
			// with the error inline, per GraphQL convention.
			frame = schema.ErrorResponse(err)
		}
		if frame.HasNext == nil {
			frame.WithHasNext(false)
		}

		if werr := writePart(w, frame); werr != nil {
			// Client gone.  Not a user-visible error: stop pulling and let
			// the deferred Close release the producer's resources.
			glog.V(2).Infof("multipart write failed, stopping stream: %v", werr)
			return
		}
		flusher.Flush()

		if err != nil || frame.Terminal() {
			break
		}
	}

	if _, err := io.WriteString(w, "--"+multipartBoundary+"--\r\n"); err != nil {
		glog.V(2).Infof("multipart terminator write failed: %v", err)
		return
	}
	flusher.Flush()
}

func writePart(w io.Writer, frame *schema.Response) error {
	body := frame.Bytes()
	_, err := fmt.Fprintf(w,
		"--%s\r\nContent-Type: application/json; charset=utf-8\r\nContent-Length: %d\r\n\r\n%s\r\n",
		multipartBoundary, len(body), body)
	return err
}
