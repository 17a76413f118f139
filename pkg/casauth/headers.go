package casauth

import "net/http"

const (
	USER_AGENT_KEY      = "User-Agent"
	ACCEPT_LANGUAGE_KEY = "Accept-Language"

	DEF_USER_AGENT      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	DEF_ACCEPT_LANGUAGE = "zh-CN,zh;q=0.9,en;q=0.8"
)

// Header is one request header. It is also the element of the headers
// list in the configuration file.
type Header struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Headers are sent, in order, with every request of a Client.
type Headers []Header

// DefaultHeaders returns the headers a desktop browser sends to the
// identity provider.
func DefaultHeaders() Headers {
	return Headers{
		{USER_AGENT_KEY, DEF_USER_AGENT},
		{ACCEPT_LANGUAGE_KEY, DEF_ACCEPT_LANGUAGE},
	}
}

// Update replaces the value of key, appending it when absent. Keys compare
// in canonical form.
func (h *Headers) Update(key, value string) {
	ck := http.CanonicalHeaderKey(key)
	for i, x := range *h {
		if http.CanonicalHeaderKey(x.Key) == ck {
			(*h)[i].Value = value
			return
		}
	}
	*h = append(*h, Header{key, value})
}

// Merge returns a copy of h with every header of over applied by Update.
func (h Headers) Merge(over Headers) Headers {
	out := append(Headers(nil), h...)
	for _, x := range over {
		out.Update(x.Key, x.Value)
	}
	return out
}

// Set writes the headers into header.
func (h Headers) Set(header http.Header) {
	for _, x := range h {
		header.Set(x.Key, x.Value)
	}
}
