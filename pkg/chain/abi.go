package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// selector returns the 4-byte function selector for a Solidity signature
// such as "getHealthData(uint256)": the first 4 bytes of the Keccak256
// hash of the signature string. Ethereum's Keccak256 predates the
// standardized SHA-3 padding, so this uses the legacy variant.
func selector(signature string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return h.Sum(nil)[:4]
}

// word is one 32-byte ABI encoding slot.
type word [32]byte

func encodeUint256(v *big.Int) word {
	var w word
	v.FillBytes(w[:])
	return w
}

func encodeUint64(v uint64) word {
	return encodeUint256(new(big.Int).SetUint64(v))
}

func encodeBool(b bool) word {
	var w word
	if b {
		w[31] = 1
	}
	return w
}

func encodeAddress(addr string) (word, error) {
	addr = strings.TrimPrefix(addr, "0x")
	raw, err := hex.DecodeString(addr)
	if err != nil || len(raw) != 20 {
		return word{}, fmt.Errorf("invalid address %q", addr)
	}
	var w word
	copy(w[12:], raw)
	return w, nil
}

// encodeString ABI-encodes a single dynamic string argument appearing after
// headWords fixed-size head slots: the head carries the byte offset to the
// tail, and the tail carries length + padded UTF-8 bytes.
func encodeString(s string, headWords int) []byte {
	offset := encodeUint64(uint64(headWords * 32))
	length := encodeUint64(uint64(len(s)))

	var out []byte
	out = append(out, offset[:]...)

	var tail []byte
	tail = append(tail, length[:]...)
	tail = append(tail, []byte(s)...)
	if pad := len(s) % 32; pad != 0 {
		tail = append(tail, make([]byte, 32-pad)...)
	}
	out = append(out, tail...)
	return out
}

// packUint256Call builds calldata for a function taking a single uint256
// argument, e.g. getHealthData(uint256), tokenURI(uint256).
func packUint256Call(signature string, arg *big.Int) []byte {
	sel := selector(signature)
	w := encodeUint256(arg)
	return append(sel, w[:]...)
}

// packUpdateHealth builds calldata for updateHealth(uint256,uint256,bool).
func packUpdateHealth(agentID *big.Int, responseTimeMs int64, success bool) []byte {
	sel := selector("updateHealth(uint256,uint256,bool)")
	a := encodeUint256(agentID)
	r := encodeUint256(big.NewInt(responseTimeMs))
	s := encodeBool(success)
	out := append([]byte{}, sel...)
	out = append(out, a[:]...)
	out = append(out, r[:]...)
	out = append(out, s[:]...)
	return out
}

// packReportSuspicious builds calldata for reportSuspicious(uint256,string).
func packReportSuspicious(agentID *big.Int, reason string) []byte {
	sel := selector("reportSuspicious(uint256,string)")
	a := encodeUint256(agentID)
	out := append([]byte{}, sel...)
	out = append(out, a[:]...)
	out = append(out, encodeString(reason, 1)...)
	return out
}

// decodeWords splits a hex-encoded return payload into 32-byte words.
func decodeWords(hexData string) ([]word, error) {
	hexData = strings.TrimPrefix(hexData, "0x")
	raw, err := hex.DecodeString(hexData)
	if err != nil {
		return nil, fmt.Errorf("decode return data: %w", err)
	}
	if len(raw)%32 != 0 {
		return nil, fmt.Errorf("return data length %d not a multiple of 32", len(raw))
	}
	words := make([]word, len(raw)/32)
	for i := range words {
		copy(words[i][:], raw[i*32:(i+1)*32])
	}
	return words, nil
}

func (w word) bigInt() *big.Int {
	return new(big.Int).SetBytes(w[:])
}

func (w word) bool() bool {
	return w[31] != 0
}

func (w word) address() string {
	return "0x" + hex.EncodeToString(w[12:])
}

// decodeDynamicString reads a dynamic string return value given the word
// index holding its byte offset, relative to the start of the words slice.
func decodeDynamicString(words []word, offsetWordIndex int) (string, error) {
	if offsetWordIndex >= len(words) {
		return "", fmt.Errorf("offset word index %d out of range", offsetWordIndex)
	}
	offset := words[offsetWordIndex].bigInt().Int64() / 32
	if offset < 0 || int(offset) >= len(words) {
		return "", fmt.Errorf("string offset %d out of range", offset)
	}
	length := words[offset].bigInt().Int64()
	raw := make([]byte, 0, length)
	remaining := length
	for i := offset + 1; remaining > 0 && int(i) < len(words); i++ {
		n := remaining
		if n > 32 {
			n = 32
		}
		raw = append(raw, words[i][:n]...)
		remaining -= n
	}
	return string(raw), nil
}
