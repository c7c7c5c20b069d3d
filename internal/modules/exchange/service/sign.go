package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// privateRequest is the envelope every private v2 endpoint takes. The
// signature covers method, id, key, the params flattened in sorted key
// order and the nonce.
type privateRequest struct {
	ID     int64                  `json:"id"`
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params"`
	Nonce  int64                  `json:"nonce"`
	APIKey string                 `json:"api_key,omitempty"`
	Sig    string                 `json:"sig,omitempty"`
}

func signRequest(req *privateRequest, apiKey, apiSecret string) {
	keys := make([]string, 0, len(req.Params))
	for k := range req.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var params strings.Builder
	for _, k := range keys {
		params.WriteString(k)
		params.WriteString(paramString(req.Params[k]))
	}

	payload := fmt.Sprintf("%s%d%s%s%d", req.Method, req.ID, apiKey, params.String(), req.Nonce)

	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(payload))

	req.APIKey = apiKey
	req.Sig = hex.EncodeToString(mac.Sum(nil))
}

// paramString renders a param value the way the exchange canonicalizes
// it: plain %v formatting, with float integers kept integral.
func paramString(v interface{}) string {
	switch t := v.(type) {
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", v)
	}
}
