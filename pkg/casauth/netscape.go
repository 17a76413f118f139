package casauth

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const netscapeHeader = "# Netscape HTTP Cookie File\n# Written by warpcas. Contains session credentials.\n\n"

func netscapeBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// WriteNetscape writes every cookie of the store in the Netscape cookie file
// format understood by curl -b and wget --load-cookies. Session cookies get
// an expiry of 0.
func (s *CookieStore) WriteNetscape(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(netscapeHeader); err != nil {
		return err
	}
	for _, c := range s.Cookies() {
		domain := c.Domain
		if !c.HostOnly {
			domain = "." + domain
		}
		if c.HttpOnly {
			domain = "#HttpOnly_" + domain
		}
		var expiry int64
		if !c.Expires.IsZero() {
			expiry = c.Expires.Unix()
		}
		_, err := fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			domain, netscapeBool(!c.HostOnly), c.Path, netscapeBool(c.Secure), expiry, c.Name, c.Value)
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadNetscape adds the cookies of a Netscape cookie file to the store and
// returns how many were read. Comment and malformed lines are skipped;
// expired cookies are kept like any other.
func (s *CookieStore) ReadNetscape(r io.Reader) (int, error) {
	n := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		httpOnly := false
		if rest, ok := strings.CutPrefix(line, "#HttpOnly_"); ok {
			httpOnly = true
			line = rest
		} else if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}
		expiry, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			continue
		}
		c := Cookie{
			Name:     fields[5],
			Value:    fields[6],
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			HttpOnly: httpOnly,
			HostOnly: !strings.EqualFold(fields[1], "TRUE"),
		}
		if expiry > 0 {
			c.Expires = time.Unix(expiry, 0)
		}
		s.Set(c)
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("error: failed to read Netscape cookie file: %w", err)
	}
	return n, nil
}
