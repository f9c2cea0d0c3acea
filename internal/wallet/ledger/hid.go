package ledger

import (
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/karalabe/usb"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/ledger-subprovider/internal/wallet/device"
)

const (
	vendorID   = 0x2c97
	usagePage  = 0xffa0
	endpointID = 0

	hidPacketSize = 64
	hidChannel    = 0x0101
	hidTagAPDU    = 0x05
)

// productIDs lists the known Ledger HID product ids.
// https://github.com/LedgerHQ/ledger-live/blob/develop/libs/ledgerjs/packages/devices/src/index.ts
var productIDs = []uint16{
	0x0000, // Ledger Blue
	0x0001, // Ledger Nano S
	0x0004, // Ledger Nano X
	0x0005, // Ledger Nano S Plus
	0x0006, // Ledger Nano FTS
	0x0015, 0x1015, 0x4015, 0x5015, 0x6015, // HID + U2F + WebUSB
	0x0011, 0x1011, 0x4011, 0x5011, 0x6011, // HID + WebUSB
}

var errReplyInvalidHeader = errors.New("ledger: invalid reply header")

// ErrNoDevice is returned when no Ledger is connected.
var ErrNoDevice = errors.New("ledger: no device found")

// HIDTransport frames APDUs into 64 byte HID reports. Exchanges are serialized,
// concurrent callers queue on the transport.
type HIDTransport struct {
	mu     sync.Mutex
	device io.ReadWriteCloser
	path   string
}

var _ device.Transport = (*HIDTransport)(nil)

// NewHIDTransport wraps an already opened HID device.
func NewHIDTransport(dev io.ReadWriteCloser, path string) *HIDTransport {
	return &HIDTransport{
		device: dev,
		path:   path,
	}
}

// ListDevices enumerates the connected Ledger devices.
func ListDevices() ([]usb.DeviceInfo, error) {
	if !usb.Supported() {
		return nil, errors.New("ledger: USB access is not supported on this platform")
	}

	infos, err := usb.Enumerate(vendorID, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate USB devices")
	}

	devices := make([]usb.DeviceInfo, 0, len(infos))
	for _, info := range infos {
		for _, id := range productIDs {
			// Windows and macOS match on usage page, Linux on interface
			if info.ProductID == id && (info.UsagePage == usagePage || info.Interface == endpointID) {
				devices = append(devices, info)
				break
			}
		}
	}

	return devices, nil
}

// OpenHID opens the first connected Ledger.
func OpenHID(_ context.Context) (device.Transport, error) {
	devices, err := ListDevices()
	if err != nil {
		return nil, err
	}

	if len(devices) == 0 {
		return nil, ErrNoDevice
	}

	info := devices[0]
	dev, err := info.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open ledger at %s", info.Path)
	}

	log.Info().
		Str("path", info.Path).
		Str("product", info.Product).
		Uint16("product_id", info.ProductID).
		Msg("Opened Ledger device")

	return NewHIDTransport(dev, info.Path), nil
}

// Close implements device.Transport.
func (t *HIDTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.device.Close()
}

// Exchange implements device.Transport.
//
// Every report starts with the header:
//
//	Description                           | Length
//	--------------------------------------+----------
//	Communication channel ID (big endian) | 2 bytes
//	Command tag                           | 1 byte
//	Packet sequence index (big endian)    | 2 bytes
//	Payload                               | arbitrary
//
// and the first report of a message prefixes the payload with its 2 byte length.
func (t *HIDTransport) Exchange(ctx context.Context, apdu []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "ledger exchange cancelled")
	}

	for _, report := range frameAPDU(apdu) {
		log.Trace().Hex("chunk", report).Str("path", t.path).Msg("Data chunk sent to the Ledger")
		if _, err := t.device.Write(report); err != nil {
			return nil, errors.Wrap(err, "failed to write to ledger")
		}
	}

	return readReply(t.device)
}

// frameAPDU splits apdu into HID reports.
func frameAPDU(apdu []byte) [][]byte {
	message := make([]byte, 2, 2+len(apdu))
	binary.BigEndian.PutUint16(message, uint16(len(apdu)))
	message = append(message, apdu...)

	header := []byte{hidChannel >> 8, hidChannel & 0xff, hidTagAPDU, 0x00, 0x00}

	var reports [][]byte
	for seq := 0; len(message) > 0; seq++ {
		report := make([]byte, hidPacketSize)
		copy(report, header)
		binary.BigEndian.PutUint16(report[3:], uint16(seq))

		n := copy(report[len(header):], message)
		message = message[n:]
		reports = append(reports, report)
	}

	return reports
}

// readReply reassembles a reply streamed back in 64 byte reports.
func readReply(r io.Reader) ([]byte, error) {
	var (
		reply  []byte
		report = make([]byte, hidPacketSize)
	)

	for seq := 0; ; seq++ {
		if _, err := io.ReadFull(r, report); err != nil {
			return nil, errors.Wrap(err, "failed to read from ledger")
		}
		log.Trace().Hex("chunk", report).Msg("Data chunk received from the Ledger")

		if binary.BigEndian.Uint16(report) != hidChannel || report[2] != hidTagAPDU {
			return nil, errReplyInvalidHeader
		}
		if int(binary.BigEndian.Uint16(report[3:])) != seq {
			return nil, errors.Errorf("ledger: unexpected packet sequence %d", binary.BigEndian.Uint16(report[3:]))
		}

		var payload []byte
		if seq == 0 {
			reply = make([]byte, 0, int(binary.BigEndian.Uint16(report[5:7])))
			payload = report[7:]
		} else {
			payload = report[5:]
		}

		if left := cap(reply) - len(reply); left > len(payload) {
			reply = append(reply, payload...)
		} else {
			return append(reply, payload[:left]...), nil
		}
	}
}
