package web

import (
	"bytes"
	"io"
	"net/http"
)

// PostBody 发送请求体并返回响应体
//   - 与 Server.Handle 的转发语义配对
func PostBody(url string, body []byte) ([]byte, error) {
	ret, err := http.Post(url, "application/octet-stream", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	defer ret.Body.Close()

	return io.ReadAll(ret.Body)
}
