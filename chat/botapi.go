package chat

import (
	"context"
	"strings"

	"github.com/json-iterator/go"
	"github.com/mediabot/mediabot/helpers"
	"github.com/pkg/errors"
)

const DefaultEndpoint = "https://api.telegram.org"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BotAPI is a Messenger over the HTTP bot API
type BotAPI struct {
	token    string
	endpoint string
}

func NewBotAPI(token string, endpoint string) *BotAPI {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &BotAPI{token: token, endpoint: strings.TrimSuffix(endpoint, "/")}
}

type apiResponse struct {
	OK          bool                `json:"ok"`
	Description string              `json:"description"`
	ErrorCode   int                 `json:"error_code"`
	Result      jsoniter.RawMessage `json:"result"`
}

type apiUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

type sendMessageParams struct {
	ChatID                int64      `json:"chat_id"`
	Text                  string     `json:"text"`
	ParseMode             Formatting `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool       `json:"disable_web_page_preview"`
}

func (b *BotAPI) SendMessage(ctx context.Context, chatID int64, text string, formatting Formatting) error {
	return b.call(ctx, "sendMessage", sendMessageParams{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             formatting,
		DisableWebPagePreview: true,
	}, nil)
}

func (b *BotAPI) Self(ctx context.Context) (identity Identity, err error) {
	var user apiUser
	if err = b.call(ctx, "getMe", struct{}{}, &user); err != nil {
		return identity, err
	}

	identity = Identity{ID: user.ID, Username: user.Username, DisplayName: user.FirstName}
	if user.LastName != "" {
		identity.DisplayName += " " + user.LastName
	}
	return identity, nil
}

func (b *BotAPI) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return errors.Wrap(err, "encoding "+method)
	}

	body, postErr := helpers.NetPostJSON(ctx, b.endpoint+"/bot"+b.token+"/"+method, data)
	if postErr != nil && len(body) == 0 {
		return errors.Wrap(postErr, method)
	}

	var response apiResponse
	if err = json.Unmarshal(body, &response); err != nil {
		if postErr != nil {
			return errors.Wrap(postErr, method)
		}
		return errors.Wrap(err, "decoding "+method)
	}
	if !response.OK {
		return errors.Errorf("%s failed (%d): %s", method, response.ErrorCode, response.Description)
	}

	if result != nil {
		return errors.Wrap(json.Unmarshal(response.Result, result), "decoding "+method+" result")
	}
	return nil
}
