package oss

import (
	"bytes"
	"encoding/xml"
	"io"
	"net/http"
	"strings"

	"github.com/dray-io/objaccess/internal/objectstore"
)

// maxErrorBody caps how much of a failed response body is read.
const maxErrorBody = 1 << 20

// errorDocument is the XML body OSS returns with failed requests:
//
//	<Error>
//	  <Code>AccessDenied</Code>
//	  <Message>...</Message>
//	  <RequestId>...</RequestId>
//	  <HostId>...</HostId>
//	</Error>
type errorDocument struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	RequestID string   `xml:"RequestId"`
	HostID    string   `xml:"HostId"`
}

func parseErrorDocument(body []byte) (objectstore.ErrorDocument, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return objectstore.ErrorDocument{}, false
	}
	var doc errorDocument
	if err := xml.Unmarshal(trimmed, &doc); err != nil {
		return objectstore.ErrorDocument{}, false
	}
	return objectstore.ErrorDocument{
		Code:      strings.TrimSpace(doc.Code),
		Message:   strings.TrimSpace(doc.Message),
		RequestID: strings.TrimSpace(doc.RequestID),
		HostID:    strings.TrimSpace(doc.HostID),
	}, true
}

// Classify translates a failed response into a normalized error. It never
// fails: bodies that are not an OSS error document become the message as-is,
// with invalid UTF-8 replaced.
func Classify(status int, header http.Header, body []byte) *objectstore.Error {
	kind, retryable := objectstore.ClassifyStatus(status)

	var err *objectstore.Error
	if doc, ok := parseErrorDocument(body); ok {
		err = objectstore.NewError(kind, doc.String())
		if doc.RequestID != "" {
			err = err.WithContext("request_id", doc.RequestID)
		}
	} else {
		message := strings.ToValidUTF8(string(body), "\uFFFD")
		if strings.TrimSpace(message) == "" {
			message = objectstore.StatusLine(status)
		}
		err = objectstore.NewError(kind, message)
	}

	err = err.WithContext("status", objectstore.StatusLine(status)).
		WithContext("headers", objectstore.FormatHeaders(header))
	if retryable {
		err = err.SetTemporary()
	}
	return err
}

// ParseError reads and closes the body of a failed response and classifies it.
func ParseError(resp *http.Response) *objectstore.Error {
	var body []byte
	var readErr error
	if resp.Body != nil {
		body, readErr = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
	}

	err := Classify(resp.StatusCode, resp.Header, body)
	if readErr != nil {
		err = err.WithContext("body_error", readErr.Error())
	}
	return err
}
