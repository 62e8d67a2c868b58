package web

import (
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/gox/netio/nw"
	"github.com/gox/netio/utils"
)

// Handler 业务句柄
//   - body 为请求体原始字节; 返回值作为响应体原样写回
type Handler func(remoteIP string, body []byte) ([]byte, error)

// Config web 服务配置
type Config struct {
	Host      string        `yaml:"host"       json:"host,omitempty"` // 监听地址 "ip:port"
	Tls       *nw.TlsConfig `yaml:"tls"        json:"tls,omitempty"`  // 非空时走 https
	Release   bool          `yaml:"release"    json:"release,omitempty"`
	AllowCors bool          `yaml:"allow_cors" json:"allow_cors,omitempty"`
}

func (this_ *Config) String() string {
	return utils.ToJson(this_)
}

// Server web 服务
//
// 把请求体转发给注册的业务句柄, 不做路由之外的处理。
type Server struct {
	host     string
	tlsCfg   *tls.Config
	listener net.Listener
	router   *gin.Engine
	running  int32
}

// NewServer 创建web服务
func NewServer(c *Config) (*Server, error) {
	if c == nil || len(c.Host) == 0 {
		return nil, nw.ErrConfigNil
	}

	if c.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	if c.AllowCors {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"*"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * 60 * 60,
		}))
	}

	var tlsCfg *tls.Config

	if c.Tls != nil {
		var err error

		tlsCfg, err = c.Tls.ServerConfig()
		if err != nil {
			return nil, err
		}
	}

	return &Server{
		host:   c.Host,
		tlsCfg: tlsCfg,
		router: router,
	}, nil
}

// Router 暴露底层路由, 用于挂载自定义中间件
func (this_ *Server) Router() *gin.Engine {
	return this_.router
}

// Handle 注册业务句柄
//   - 请求体原样交给 handler, 返回值原样写回
func (this_ *Server) Handle(method, path string, handler Handler) {
	this_.router.Handle(method, path, func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusBadRequest)
			return
		}

		rsp, err := handler(nw.GetHttpRequestRealIP(c.Request), body)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}

		c.Data(http.StatusOK, c.ContentType(), rsp)
	})
}

// Run 启动服务 (阻塞)
func (this_ *Server) Run() error {
	if !atomic.CompareAndSwapInt32(&this_.running, 0, 1) {
		return nw.ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", this_.host)
	if err != nil {
		atomic.StoreInt32(&this_.running, 0)
		return err
	}

	if this_.tlsCfg != nil {
		ln = tls.NewListener(ln, this_.tlsCfg)
	}

	this_.listener = ln
	return this_.router.RunListener(ln)
}

// Addr 实际监听地址
func (this_ *Server) Addr() net.Addr {
	if this_.listener == nil {
		return nil
	}

	return this_.listener.Addr()
}

// Stop 停止服务
func (this_ *Server) Stop() {
	if !atomic.CompareAndSwapInt32(&this_.running, 1, 0) {
		return
	}

	this_.listener.Close()
}
