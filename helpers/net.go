package helpers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mediabot/mediabot/version"
	"github.com/pkg/errors"
)

var DEFAULT_UA = "mediabot/" + version.BOT_VERSION

var netClient = &http.Client{
	Timeout: time.Duration(15 * time.Second),
}

// NetPostJSON posts data to url with the bot user-agent. The body is returned even if
// the status is not 200, together with an error.
func NetPostJSON(ctx context.Context, url string, data []byte) (result []byte, err error) {
	// Prepare request
	request, err := http.NewRequest("POST", url, bytes.NewReader(data))
	if err != nil {
		return result, err
	}
	request = request.WithContext(ctx)

	request.Header.Set("User-Agent", DEFAULT_UA)
	request.Header.Set("Content-Type", "application/json")

	// Do request
	response, err := netClient.Do(request)
	if err != nil {
		return result, err
	}
	defer response.Body.Close()

	// Read body
	buf := bytes.NewBuffer(nil)
	_, err = io.Copy(buf, response.Body)
	if err != nil {
		return result, err
	}

	if response.StatusCode != 200 {
		return buf.Bytes(), errors.New("expected status 200; got " + strconv.Itoa(response.StatusCode))
	}
	return buf.Bytes(), nil
}
