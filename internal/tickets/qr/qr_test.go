package qr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickethub/internal/models"
)

func TestEncryptedPayloadRoundTrip(t *testing.T) {
	gen := NewGenerator("test-secret")

	data, err := json.Marshal(payload{TicketID: "ticket-1", EventID: "event-1", UserID: "buyer-1"})
	require.NoError(t, err)

	encrypted, err := encryptAES(data, gen.secret)
	require.NoError(t, err)
	assert.NotContains(t, encrypted, "ticket-1")

	ticketID, eventID, err := gen.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "ticket-1", ticketID)
	assert.Equal(t, "event-1", eventID)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	gen := NewGenerator("secret-a")
	other := NewGenerator("secret-b")

	data, err := json.Marshal(payload{TicketID: "ticket-1", EventID: "event-1"})
	require.NoError(t, err)
	encrypted, err := encryptAES(data, gen.secret)
	require.NoError(t, err)

	_, _, err = other.Decrypt(encrypted)
	assert.Error(t, err)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	gen := NewGenerator("test-secret")

	_, _, err := gen.Decrypt("not-base64!!!")
	assert.Error(t, err)

	_, _, err = gen.Decrypt("dG9vc2hvcnQ=") // valid base64, shorter than one AES block
	assert.Error(t, err)
}

func TestGenerateEncryptedQRProducesPNG(t *testing.T) {
	gen := NewGenerator("test-secret")

	png, err := gen.GenerateEncryptedQR(models.Ticket{ID: "ticket-1", EventID: "event-1", UserID: "buyer-1"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}
