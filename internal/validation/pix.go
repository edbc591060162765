// internal/validation/pix.go
package validation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"readreward/internal/util"
)

// TLV is one tag-length-value field of an instant-payment payload.
type TLV struct {
	Tag   string
	Value string
}

// Top-level and nested tags used by the copy-and-paste payment payload.
const (
	tagFormatIndicator  = "00"
	tagMerchantAccount  = "26"
	tagCategoryCode     = "52"
	tagCurrency         = "53"
	tagAmount           = "54"
	tagCountry          = "58"
	tagMerchantName     = "59"
	tagMerchantCity     = "60"
	tagAdditionalData   = "62"
	tagCRC              = "63"
	subTagGUI           = "00"
	subTagKey           = "01"
	subTagDescription   = "02"
	subTagTxID          = "05"
	pixGUI              = "br.gov.bcb.pix"
	currencyBRL         = "986"
	crcFieldPrefix      = tagCRC + "04"
	maxMerchantNameLen  = 25
	maxMerchantCityLen  = 15
	defaultTxID         = "***"
)

// PixPayload holds the fields this system reads and writes.
type PixPayload struct {
	Key          string
	Description  string
	MerchantName string
	MerchantCity string
	Amount       decimal.Decimal
	TxID         string
}

// EncodeTLV concatenates fields as tag, two-digit length, value.
func EncodeTLV(fields []TLV) (string, error) {
	var b strings.Builder
	for _, f := range fields {
		if len(f.Tag) != 2 {
			return "", fmt.Errorf("%w: tag %q must have two characters", util.ErrInvalidPayload, f.Tag)
		}
		n := utf8.RuneCountInString(f.Value)
		if n > 99 {
			return "", fmt.Errorf("%w: value of tag %s exceeds 99 characters", util.ErrInvalidPayload, f.Tag)
		}
		b.WriteString(f.Tag)
		b.WriteString(fmt.Sprintf("%02d", n))
		b.WriteString(f.Value)
	}
	return b.String(), nil
}

// DecodeTLV splits s into its fields without interpreting them.
func DecodeTLV(s string) ([]TLV, error) {
	runes := []rune(s)
	var fields []TLV
	for i := 0; i < len(runes); {
		if i+4 > len(runes) {
			return nil, fmt.Errorf("%w: truncated field header at %d", util.ErrInvalidPayload, i)
		}
		tag := string(runes[i : i+2])
		n, err := strconv.Atoi(string(runes[i+2 : i+4]))
		if err != nil {
			return nil, fmt.Errorf("%w: bad length for tag %s", util.ErrInvalidPayload, tag)
		}
		start := i + 4
		if start+n > len(runes) {
			return nil, fmt.Errorf("%w: value of tag %s overruns payload", util.ErrInvalidPayload, tag)
		}
		fields = append(fields, TLV{Tag: tag, Value: string(runes[start : start+n])})
		i = start + n
	}
	return fields, nil
}

// CRC16CCITT computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF).
func CRC16CCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// AppendCRC terminates payload with the checksum field. The checksum covers
// everything before its own four hex digits, including the "6304" header.
func AppendCRC(payload string) string {
	withHeader := payload + crcFieldPrefix
	return fmt.Sprintf("%s%04X", withHeader, CRC16CCITT([]byte(withHeader)))
}

// VerifyCRC checks the trailing checksum field of a complete payload.
func VerifyCRC(payload string) error {
	if len(payload) < len(crcFieldPrefix)+4 {
		return fmt.Errorf("%w: payload too short", util.ErrInvalidPayload)
	}
	body := payload[:len(payload)-4]
	if !strings.HasSuffix(body, crcFieldPrefix) {
		return fmt.Errorf("%w: missing checksum field", util.ErrInvalidPayload)
	}
	got := strings.ToUpper(payload[len(payload)-4:])
	want := fmt.Sprintf("%04X", CRC16CCITT([]byte(body)))
	if got != want {
		return fmt.Errorf("%w: got %s, want %s", util.ErrChecksumMismatch, got, want)
	}
	return nil
}

// EncodePix builds a static copy-and-paste payment payload.
func EncodePix(p PixPayload) (string, error) {
	if p.Key == "" {
		return "", fmt.Errorf("%w: receiver key is required", util.ErrInvalidPayload)
	}
	account := []TLV{{Tag: subTagGUI, Value: pixGUI}, {Tag: subTagKey, Value: p.Key}}
	if p.Description != "" {
		account = append(account, TLV{Tag: subTagDescription, Value: p.Description})
	}
	accountValue, err := EncodeTLV(account)
	if err != nil {
		return "", err
	}

	txID := p.TxID
	if txID == "" {
		txID = defaultTxID
	}
	additional, err := EncodeTLV([]TLV{{Tag: subTagTxID, Value: txID}})
	if err != nil {
		return "", err
	}

	fields := []TLV{
		{Tag: tagFormatIndicator, Value: "01"},
		{Tag: tagMerchantAccount, Value: accountValue},
		{Tag: tagCategoryCode, Value: "0000"},
		{Tag: tagCurrency, Value: currencyBRL},
	}
	if p.Amount.IsPositive() {
		fields = append(fields, TLV{Tag: tagAmount, Value: FormatAmount(p.Amount)})
	}
	fields = append(fields,
		TLV{Tag: tagCountry, Value: "BR"},
		TLV{Tag: tagMerchantName, Value: truncate(p.MerchantName, maxMerchantNameLen)},
		TLV{Tag: tagMerchantCity, Value: truncate(p.MerchantCity, maxMerchantCityLen)},
		TLV{Tag: tagAdditionalData, Value: additional},
	)

	body, err := EncodeTLV(fields)
	if err != nil {
		return "", err
	}
	return AppendCRC(body), nil
}

// DecodePix verifies the checksum of a payload and extracts its fields.
func DecodePix(payload string) (*PixPayload, error) {
	if err := VerifyCRC(payload); err != nil {
		return nil, err
	}
	fields, err := DecodeTLV(payload)
	if err != nil {
		return nil, err
	}

	out := &PixPayload{Amount: decimal.Zero}
	for _, f := range fields {
		switch f.Tag {
		case tagMerchantAccount:
			sub, err := DecodeTLV(f.Value)
			if err != nil {
				return nil, err
			}
			for _, s := range sub {
				switch s.Tag {
				case subTagKey:
					out.Key = s.Value
				case subTagDescription:
					out.Description = s.Value
				}
			}
		case tagAmount:
			amount, err := decimal.NewFromString(f.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: bad amount %q", util.ErrInvalidPayload, f.Value)
			}
			out.Amount = amount
		case tagMerchantName:
			out.MerchantName = f.Value
		case tagMerchantCity:
			out.MerchantCity = f.Value
		case tagAdditionalData:
			sub, err := DecodeTLV(f.Value)
			if err != nil {
				return nil, err
			}
			for _, s := range sub {
				if s.Tag == subTagTxID {
					out.TxID = s.Value
				}
			}
		}
	}
	return out, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) > max {
		return string(r[:max])
	}
	return s
}
