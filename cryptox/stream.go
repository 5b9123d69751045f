package cryptox

import "io"

// StreamReader runs a cipher Stream over a source reader, producing the
// transformed bytes. When the source reaches EOF the stream's Final output is
// appended, so chaining a decryptor and an encryptor re-wraps a blob without
// ever buffering the whole plaintext.
type StreamReader struct {
	src     io.Reader
	stream  Stream
	pending []byte
	scratch []byte
	eof     bool
}

func NewStreamReader(src io.Reader, stream Stream) *StreamReader {
	return &StreamReader{src: src, stream: stream, scratch: make([]byte, 32*1024)}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 && !r.eof {
		n, err := r.src.Read(r.scratch)
		if n > 0 {
			out, uerr := r.stream.Update(r.scratch[:n])
			if uerr != nil {
				return 0, uerr
			}
			r.pending = append(r.pending, out...)
		}
		if err == io.EOF {
			tail, ferr := r.stream.Final()
			if ferr != nil {
				return 0, ferr
			}
			r.pending = append(r.pending, tail...)
			r.eof = true
		} else if err != nil {
			return 0, err
		}
	}
	if len(r.pending) == 0 && r.eof {
		return 0, io.EOF
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}
