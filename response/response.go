package response

import (
	"net/http"

	"github.com/tiagossm/Compia20251207-sub001/errors"

	"github.com/gofiber/fiber/v3"
)

/* ========================================================================
 * JSON responses
 * ========================================================================
 * Business errors render their code, kind, message and details. Anything
 * else renders as an opaque 500 so store text and stack traces never
 * reach a client.
 * ======================================================================== */

func newResp(code int, msg string, data any) *Result {
	resp := &Result{Code: code, Msg: msg}
	if data == nil {
		resp.Data = &struct{}{}
	} else {
		resp.Data = data
	}
	return resp
}

func respJSONWithStatusCode(c fiber.Ctx, code int, msg string, data ...any) error {
	var firstData any
	if len(data) > 0 {
		firstData = data[0]
	}
	if code > http.StatusNetworkAuthenticationRequired || code < http.StatusContinue {
		code = http.StatusInternalServerError
	}
	return c.Status(code).JSON(newResp(code, msg, firstData))
}

func Ok(c fiber.Ctx) error {
	return respJSONWithStatusCode(c, http.StatusOK, "ok")
}

func OkWithData(c fiber.Ctx, data any) error {
	return respJSONWithStatusCode(c, http.StatusOK, "ok", data)
}

func Created(c fiber.Ctx, data any) error {
	return respJSONWithStatusCode(c, http.StatusCreated, "created", data)
}

func PageData(c fiber.Ctx, list any, total int64, page, pageSize int, pages int64) error {
	return OkWithData(c, &PageResult{
		List:     list,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    pages,
	})
}

// Error renders err. A *fiber.Error keeps its status and message.
func Error(c fiber.Ctx, err error) error {
	if err == nil {
		return Ok(c)
	}

	if _, ok := errors.AsBizError(err); !ok {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return respJSONWithStatusCode(c, fe.Code, fe.Message)
		}
	}

	status, body := errors.ToHTTPResponse(err)
	res := Result{
		Code: body["code"].(int),
		Msg:  body["msg"].(string),
		Data: &struct{}{},
	}
	if kind, ok := body["kind"].(string); ok {
		res.Kind = kind
	}
	if details, ok := body["details"].(map[string]any); ok {
		res.Details = details
	}
	return c.Status(status).JSON(res)
}
