package queue

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeBody_Empty(t *testing.T) {
	b, err := EncodeBody("application/json", nil)
	require.NoError(t, err)
	require.Equal(t, BodyNone, b.Kind)

	r, ct, err := DecodeBody(b)
	require.NoError(t, err)
	require.Nil(t, r)
	require.Empty(t, ct)
}

func TestBody_JSONRoundTrip(t *testing.T) {
	payload := `{"nombre":"Taller de siembra"}`

	b, err := EncodeBody("application/json; charset=utf-8", []byte(payload))
	require.NoError(t, err)
	require.Equal(t, BodyJSON, b.Kind)

	r, ct, err := DecodeBody(b)
	require.NoError(t, err)
	require.Equal(t, "application/json; charset=utf-8", ct)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, payload, string(data))
}

func TestBody_FormRoundTrip(t *testing.T) {
	payload := "nombre=Taller&region=norte"

	b, err := EncodeBody("application/x-www-form-urlencoded", []byte(payload))
	require.NoError(t, err)
	require.Equal(t, BodyForm, b.Kind)

	r, ct, err := DecodeBody(b)
	require.NoError(t, err)
	require.Equal(t, "application/x-www-form-urlencoded", ct)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, payload, string(data))
}

func TestBody_MissingContentTypeTreatedAsText(t *testing.T) {
	b, err := EncodeBody("", []byte("hola"))
	require.NoError(t, err)
	require.Equal(t, BodyText, b.Kind)
	require.Equal(t, "hola", b.Text)
}

func TestBody_BinaryDegradesToNone(t *testing.T) {
	b, err := EncodeBody("application/octet-stream", []byte{0x00, 0x01, 0x02})
	require.NoError(t, err)
	require.Equal(t, BodyNone, b.Kind)
	require.Equal(t, 1, b.DroppedFiles)
}

func TestBody_MultipartRoundTripDropsFiles(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("nombre", "Taller de siembra"))
	require.NoError(t, w.WriteField("region", "norte"))
	fw, err := w.CreateFormFile("adjunto", "foto.jpg")
	require.NoError(t, err)
	_, err = fw.Write([]byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b, err := EncodeBody(w.FormDataContentType(), buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, BodyMultipart, b.Kind)
	require.Equal(t, 1, b.DroppedFiles)
	require.Equal(t, []FormField{
		{Name: "nombre", Value: "Taller de siembra"},
		{Name: "region", Value: "norte"},
	}, b.Fields)

	// the rebuilt body carries a fresh boundary but the same fields
	r, ct, err := DecodeBody(b)
	require.NoError(t, err)

	_, params, err := mime.ParseMediaType(ct)
	require.NoError(t, err)
	mr := multipart.NewReader(r, params["boundary"])

	form, err := mr.ReadForm(1 << 20)
	require.NoError(t, err)
	require.Equal(t, []string{"Taller de siembra"}, form.Value["nombre"])
	require.Equal(t, []string{"norte"}, form.Value["region"])
	require.Empty(t, form.File)
}

func TestEncodeBody_MultipartWithoutBoundary(t *testing.T) {
	_, err := EncodeBody("multipart/form-data", []byte("x"))
	require.Error(t, err)
}

func TestDecodeBody_UnknownKind(t *testing.T) {
	_, _, err := DecodeBody(Body{Kind: BodyKind("blob")})
	require.Error(t, err)
}
