package printer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	logx "printdesk/pkg/logx"
)

// Epson drives an Epson TM-series printer through its character device
// node (e.g. /dev/usb/lp0). Each render opens the node, writes one fully
// encoded receipt and closes it again, so the probe always reflects the
// current cable state.
type Epson struct {
	mu   sync.Mutex
	path string
	log  logx.Logger
}

func NewEpson(devicePath string, log logx.Logger) *Epson {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Epson{path: devicePath, log: log}
}

// Available probes the device node.
func (p *Epson) Available() bool {
	_, err := os.Stat(p.path)
	return err == nil
}

func (p *Epson) Render(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.Available() {
		return ErrUnavailable
	}

	data := encode(doc)

	// One writer at a time: interleaved writes shred receipts.
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.OpenFile(p.path, os.O_WRONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrUnavailable
		}
		return fmt.Errorf("open printer %s: %w", p.path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write printer %s: %w", p.path, err)
	}
	return nil
}

// ESC/POS control sequences (Epson TM-T20 class).
var (
	escInit     = []byte{0x1b, 0x40}             // ESC @  initialize
	escCenter   = []byte{0x1b, 0x61, 0x01}       // ESC a 1
	escBoldOn   = []byte{0x1b, 0x45, 0x01}       // ESC E 1
	escBoldOff  = []byte{0x1b, 0x45, 0x00}       // ESC E 0
	escFontA    = []byte{0x1b, 0x4d, 0x00}       // ESC M 0
	escFontB    = []byte{0x1b, 0x4d, 0x01}       // ESC M 1
	escCut      = []byte{0x1d, 0x56, 0x42, 0x00} // GS V B 0  feed + partial cut
	escSizeBig  = sizeCmd(3, 3)
	escSizeMid  = sizeCmd(2, 2)
	escSizeBase = sizeCmd(1, 1)
)

// sizeCmd builds GS ! n with 1-based width/height multipliers.
func sizeCmd(w, h int) []byte {
	n := byte((w-1)<<4 | (h - 1))
	return []byte{0x1d, 0x21, n}
}

// encode serializes a document to raw ESC/POS bytes, mirroring the
// receipt layout: QR on top, oversized bold title, optional subtitle and
// body, then small footer lines.
func encode(doc Document) []byte {
	var b bytes.Buffer
	b.Write(escInit)
	b.Write(escCenter)

	if doc.QR != "" {
		b.Write(qrCode(doc.QR))
		b.WriteByte('\n')
	}

	b.Write(escFontA)
	b.Write(escBoldOn)
	b.Write(escSizeBig)
	b.WriteString(doc.Title)
	b.WriteByte('\n')
	b.Write(escBoldOff)

	if doc.Subtitle != "" {
		b.WriteByte('\n')
		b.Write(escFontB)
		b.Write(escSizeMid)
		b.WriteString(doc.Subtitle)
		b.WriteByte('\n')
	}
	if doc.Body != "" {
		b.WriteByte('\n')
		b.Write(escFontB)
		b.Write(escSizeBase)
		b.WriteString(doc.Body)
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	b.Write(escFontB)
	b.Write(escSizeBase)
	for _, line := range doc.Footer {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	b.Write(escCut)
	return b.Bytes()
}

// qrCode emits the GS ( k function series: select model 2, set module
// size, store the payload, print.
func qrCode(payload string) []byte {
	var b bytes.Buffer
	// Function 165: select model 2.
	b.Write([]byte{0x1d, 0x28, 0x6b, 0x04, 0x00, 0x31, 0x41, 0x32, 0x00})
	// Function 167: module size 6 dots.
	b.Write([]byte{0x1d, 0x28, 0x6b, 0x03, 0x00, 0x31, 0x43, 0x06})
	// Function 169: error correction level M.
	b.Write([]byte{0x1d, 0x28, 0x6b, 0x03, 0x00, 0x31, 0x45, 0x31})
	// Function 180: store data. Length covers payload + 3 header bytes.
	n := len(payload) + 3
	b.Write([]byte{0x1d, 0x28, 0x6b, byte(n & 0xff), byte(n >> 8), 0x31, 0x50, 0x30})
	b.WriteString(payload)
	// Function 181: print stored symbol.
	b.Write([]byte{0x1d, 0x28, 0x6b, 0x03, 0x00, 0x31, 0x51, 0x30})
	return b.Bytes()
}
