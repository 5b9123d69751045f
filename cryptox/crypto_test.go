package cryptox

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := DeriveKey([]byte("password-hash"), []byte("deployment-salt"))
	require.NoError(t, err)
	require.Len(t, key, FileKeySize)
	return key
}

func encryptChunks(t *testing.T, key []byte, iv string, chunks ...[]byte) []byte {
	t.Helper()
	enc, err := NewEncryptor(key, iv)
	require.NoError(t, err)
	var out []byte
	for _, chunk := range chunks {
		part, err := enc.Update(chunk)
		require.NoError(t, err)
		out = append(out, part...)
	}
	tail, err := enc.Final()
	require.NoError(t, err)
	return append(out, tail...)
}

func decryptChunks(t *testing.T, key []byte, iv string, ciphertext []byte, chunkSize int) []byte {
	t.Helper()
	dec, err := NewDecryptor(key, iv)
	require.NoError(t, err)
	var out []byte
	for start := 0; start < len(ciphertext); start += chunkSize {
		end := start + chunkSize
		if end > len(ciphertext) {
			end = len(ciphertext)
		}
		part, err := dec.Update(ciphertext[start:end])
		require.NoError(t, err)
		out = append(out, part...)
	}
	tail, err := dec.Final()
	require.NoError(t, err)
	return append(out, tail...)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey(t)

	for _, size := range []int{0, 1, 15, 16, 17, 31, 32, 1000, 4096} {
		plaintext := make([]byte, size)
		_, err := rand.Read(plaintext)
		require.NoError(t, err)

		iv, err := NewIV()
		require.NoError(t, err)

		ciphertext := encryptChunks(t, key, iv, plaintext)
		assert.Equal(t, 0, len(ciphertext)%16, "size %d", size)
		assert.Greater(t, len(ciphertext), size-16, "size %d", size)

		for _, chunkSize := range []int{1, 7, 16, 33, 4096} {
			got := decryptChunks(t, key, iv, ciphertext, chunkSize)
			assert.Equal(t, plaintext, got, "size %d chunk %d", size, chunkSize)
		}
	}
}

func TestEncryptorHoldsPartialBlock(t *testing.T) {
	key := testKey(t)
	iv, err := NewIV()
	require.NoError(t, err)

	enc, err := NewEncryptor(key, iv)
	require.NoError(t, err)

	out, err := enc.Update([]byte("short"))
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = enc.Update(bytes.Repeat([]byte{'a'}, 16))
	require.NoError(t, err)
	assert.Len(t, out, 16)

	tail, err := enc.Final()
	require.NoError(t, err)
	assert.Len(t, tail, 16)
}

func TestDecryptorWithholdsLastBlock(t *testing.T) {
	key := testKey(t)
	iv, err := NewIV()
	require.NoError(t, err)

	plaintext := bytes.Repeat([]byte{'x'}, 32)
	ciphertext := encryptChunks(t, key, iv, plaintext)
	require.Len(t, ciphertext, 48)

	dec, err := NewDecryptor(key, iv)
	require.NoError(t, err)

	// Feeding whole blocks must never release the final, padded block early.
	out, err := dec.Update(ciphertext[:16])
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = dec.Update(ciphertext[16:])
	require.NoError(t, err)
	assert.Len(t, out, 32)

	tail, err := dec.Final()
	require.NoError(t, err)
	assert.Empty(t, tail)
}

func TestResumedSessionMatchesContinuousSession(t *testing.T) {
	key := testKey(t)
	iv, err := NewIV()
	require.NoError(t, err)

	plaintext := make([]byte, 5000)
	_, err = rand.Read(plaintext)
	require.NoError(t, err)
	split := 2345

	// Interrupted session: the first part is encrypted and finalized on its
	// own, the way an aborted upload leaves its blob.
	partialBlob := encryptChunks(t, key, iv, plaintext[:split])

	// Resumed session: replay the partial blob through a decryptor into a new
	// encryptor, then continue with the remaining bytes.
	enc, err := NewEncryptor(key, iv)
	require.NoError(t, err)
	dec, err := NewDecryptor(key, iv)
	require.NoError(t, err)

	var resumedBlob []byte
	replay := NewStreamReader(bytes.NewReader(partialBlob), dec)
	buf := make([]byte, 512)
	for {
		n, err := replay.Read(buf)
		if n > 0 {
			out, uerr := enc.Update(buf[:n])
			require.NoError(t, uerr)
			resumedBlob = append(resumedBlob, out...)
		}
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	out, err := enc.Update(plaintext[split:])
	require.NoError(t, err)
	resumedBlob = append(resumedBlob, out...)
	tail, err := enc.Final()
	require.NoError(t, err)
	resumedBlob = append(resumedBlob, tail...)

	got := decryptChunks(t, key, iv, resumedBlob, 1024)
	assert.Equal(t, plaintext, got)

	// And it matches what one uninterrupted session would have produced.
	continuous := encryptChunks(t, key, iv, plaintext)
	assert.Equal(t, continuous, resumedBlob)
}

func TestStreamReaderChainsTransforms(t *testing.T) {
	keyA := testKey(t)
	keyB, err := DeriveKey([]byte("other-hash"), []byte("deployment-salt"))
	require.NoError(t, err)

	ivA, err := NewIV()
	require.NoError(t, err)
	ivB, err := NewIV()
	require.NoError(t, err)

	plaintext := make([]byte, 3000)
	_, err = rand.Read(plaintext)
	require.NoError(t, err)

	blobA := encryptChunks(t, keyA, ivA, plaintext)

	dec, err := NewDecryptor(keyA, ivA)
	require.NoError(t, err)
	enc, err := NewEncryptor(keyB, ivB)
	require.NoError(t, err)

	plain := NewStreamReader(bytes.NewReader(blobA), dec)
	rewrapped := NewStreamReader(plain, enc)
	blobB, err := io.ReadAll(rewrapped)
	require.NoError(t, err)

	got := decryptChunks(t, keyB, ivB, blobB, 700)
	assert.Equal(t, plaintext, got)
}

func TestStreamFinalizedErrors(t *testing.T) {
	key := testKey(t)
	iv, err := NewIV()
	require.NoError(t, err)

	enc, err := NewEncryptor(key, iv)
	require.NoError(t, err)
	_, err = enc.Final()
	require.NoError(t, err)

	_, err = enc.Update([]byte("more"))
	assert.ErrorIs(t, err, ErrCipherFinalized)
	_, err = enc.Final()
	assert.ErrorIs(t, err, ErrCipherFinalized)

	dec, err := NewDecryptor(key, iv)
	require.NoError(t, err)
	_, err = dec.Final()
	assert.ErrorIs(t, err, ErrBadCiphertext)
	_, err = dec.Update([]byte("late"))
	assert.ErrorIs(t, err, ErrCipherFinalized)
}

func TestDecryptorRejectsCorruptPadding(t *testing.T) {
	key := testKey(t)
	iv, err := NewIV()
	require.NoError(t, err)

	// A final block whose last byte decrypts to zero can never be valid
	// PKCS#7 padding.
	mode, err := newBlockMode(key, iv, true)
	require.NoError(t, err)
	ciphertext := make([]byte, 16)
	mode.CryptBlocks(ciphertext, make([]byte, 16))

	dec, err := NewDecryptor(key, iv)
	require.NoError(t, err)
	_, err = dec.Update(ciphertext)
	require.NoError(t, err)
	_, err = dec.Final()
	assert.ErrorIs(t, err, ErrBadPadding)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	a, err := DeriveKey([]byte("hash"), []byte("salt"))
	require.NoError(t, err)
	b, err := DeriveKey([]byte("hash"), []byte("salt"))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := DeriveKey([]byte("hash"), []byte("other-salt"))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	d, err := DeriveKey([]byte("other-hash"), []byte("salt"))
	require.NoError(t, err)
	assert.NotEqual(t, a, d)
}

func TestHashPassword(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)

	a, err := HashPassword([]byte("hunter22"), []byte(salt))
	require.NoError(t, err)
	b, err := HashPassword([]byte("hunter22"), []byte(salt))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 128)

	other, err := NewSalt()
	require.NoError(t, err)
	c, err := HashPassword([]byte("hunter22"), []byte(other))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
