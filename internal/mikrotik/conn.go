package mikrotik

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// maxWordLength caps a single API word read from the router.
const maxWordLength = 16 << 20

var errWordTooLong = errors.New("mikrotik: API word exceeds size limit")

// conn speaks the RouterOS API sentence protocol: length-prefixed words,
// each sentence closed by an empty word.
type conn struct {
	raw net.Conn
	r   *bufio.Reader
}

func newConn(raw net.Conn) *conn {
	return &conn{raw: raw, r: bufio.NewReader(raw)}
}

func (c *conn) Close() error {
	return c.raw.Close()
}

func encodeLength(n int) []byte {
	switch {
	case n < 0x80:
		return []byte{byte(n)}
	case n < 0x4000:
		return []byte{byte(n>>8) | 0x80, byte(n)}
	case n < 0x200000:
		return []byte{byte(n>>16) | 0xC0, byte(n >> 8), byte(n)}
	case n < 0x10000000:
		return []byte{byte(n>>24) | 0xE0, byte(n >> 16), byte(n >> 8), byte(n)}
	}
	return []byte{0xF0, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
}

// writeSentence sends the words followed by the terminating empty word.
func (c *conn) writeSentence(words ...string) error {
	var buf []byte
	for _, w := range words {
		buf = append(buf, encodeLength(len(w))...)
		buf = append(buf, w...)
	}
	buf = append(buf, 0)
	_, err := c.raw.Write(buf)
	return err
}

func (c *conn) readLength() (int, error) {
	first, err := c.r.ReadByte()
	if err != nil {
		return 0, err
	}

	var extra int
	var n int
	switch {
	case first < 0x80:
		return int(first), nil
	case first < 0xC0:
		extra, n = 1, int(first&0x3F)
	case first < 0xE0:
		extra, n = 2, int(first&0x1F)
	case first < 0xF0:
		extra, n = 3, int(first&0x0F)
	default:
		extra, n = 4, 0
	}

	for i := 0; i < extra; i++ {
		b, err := c.r.ReadByte()
		if err != nil {
			return 0, err
		}
		n = n<<8 | int(b)
	}
	return n, nil
}

func (c *conn) readWord() (string, error) {
	n, err := c.readLength()
	if err != nil || n == 0 {
		return "", err
	}
	if n > maxWordLength {
		return "", fmt.Errorf("%w: %d bytes", errWordTooLong, n)
	}
	word := make([]byte, n)
	if _, err := io.ReadFull(c.r, word); err != nil {
		return "", err
	}
	return string(word), nil
}

// readSentence returns the words of the next sentence. The first word is
// the reply type (!re, !done, !trap, !fatal).
func (c *conn) readSentence() ([]string, error) {
	var words []string
	for {
		word, err := c.readWord()
		if err != nil {
			return nil, err
		}
		if word == "" {
			if len(words) == 0 {
				continue
			}
			return words, nil
		}
		words = append(words, word)
	}
}

// Reply collects the data sentences of one command and the attributes of
// its !done sentence.
type Reply struct {
	Re   []Record
	Done Record
}

// Error is a !trap or !fatal reply.
type Error struct {
	Category string
	Message  string
}

func (e *Error) Error() string {
	return "mikrotik: " + e.Message
}

// do runs one command and reads until !done. A !trap is still followed by
// !done, so the reply is drained before the error is returned.
func (c *conn) do(words ...string) (*Reply, error) {
	if err := c.writeSentence(words...); err != nil {
		return nil, fmt.Errorf("send %s: %w", words[0], err)
	}

	reply := &Reply{}
	var trap *Error
	for {
		sentence, err := c.readSentence()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", words[0], err)
		}
		attrs := parseAttributes(sentence[1:])

		switch sentence[0] {
		case "!re":
			reply.Re = append(reply.Re, attrs)
		case "!trap":
			if trap == nil {
				trap = &Error{Category: attrs["category"], Message: attrs["message"]}
			}
		case "!fatal":
			msg := attrs["message"]
			if msg == "" && len(sentence) > 1 {
				msg = sentence[1]
			}
			return nil, &Error{Message: msg}
		case "!done":
			reply.Done = attrs
			if trap != nil {
				return reply, trap
			}
			return reply, nil
		}
	}
}

func parseAttributes(words []string) Record {
	rec := Record{}
	for _, w := range words {
		if !strings.HasPrefix(w, "=") {
			continue
		}
		kv := strings.SplitN(w[1:], "=", 2)
		if len(kv) == 2 {
			rec[kv[0]] = kv[1]
		} else {
			rec[kv[0]] = ""
		}
	}
	return rec
}

var errAuth = errors.New("authentication failed")

// login tries the post-6.43 plain login and falls back to the MD5
// challenge when the router answers with =ret=.
func (c *conn) login(username, password string) error {
	reply, err := c.do("/login", "=name="+username, "=password="+password)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			return fmt.Errorf("%w: %s", errAuth, apiErr.Message)
		}
		return err
	}

	challenge, ok := reply.Done["ret"]
	if !ok {
		return nil
	}
	response, err := challengeResponse(password, challenge)
	if err != nil {
		return err
	}
	if _, err := c.do("/login", "=name="+username, "=response=00"+response); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			return fmt.Errorf("%w: %s", errAuth, apiErr.Message)
		}
		return err
	}
	return nil
}

// challengeResponse is md5(0x00 + password + challenge) in hex.
func challengeResponse(password, challenge string) (string, error) {
	raw, err := hex.DecodeString(challenge)
	if err != nil {
		return "", fmt.Errorf("bad login challenge: %w", err)
	}
	h := md5.New()
	h.Write([]byte{0})
	h.Write([]byte(password))
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil)), nil
}
