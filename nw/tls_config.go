package nw

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gox/netio/utils"
)

// TlsConfig TLS 配置
//
// 服务端与客户端共用; 会话复用所属服务端的配置。
// SSLv2/SSLv3 不可启用, 最低协商版本固定为 TLS 1.2。
type TlsConfig struct {
	CertFile   string `yaml:"cert_file"   json:"cert_file,omitempty"`   // 证书链路径
	KeyFile    string `yaml:"key_file"    json:"key_file,omitempty"`    // 私钥路径
	Passphrase string `yaml:"passphrase"  json:"-"`                     // 私钥口令
	DhParamsFile string `yaml:"dh_params_file" json:"dh_params_file,omitempty"` // 兼容项, 密钥交换固定使用 ECDHE
	CaFile     string `yaml:"ca_file"     json:"ca_file,omitempty"`     // CA 证书路径
	CaPath     string `yaml:"ca_path"     json:"ca_path,omitempty"`     // CA 证书目录
	VerifyClient bool `yaml:"verify_client" json:"verify_client,omitempty"` // 服务端要求并校验客户端证书

	ServerName         string `yaml:"server_name" json:"server_name,omitempty"` // 客户端校验的主机名, 为空时取连接端点
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" json:"insecure_skip_verify,omitempty"`

	// 兼容项, 只做记录:
	// Go TLS 不提供 SSLv2/SSLv3, 也不暴露 DH 复用开关
	EnableSSLv2        bool `yaml:"enable_sslv2"        json:"enable_sslv2,omitempty"`
	DefaultWorkarounds bool `yaml:"default_workarounds" json:"default_workarounds,omitempty"`
	SingleDhUse        bool `yaml:"single_dh_use"       json:"single_dh_use,omitempty"`
}

// String 口令字段不参与序列化
func (this_ *TlsConfig) String() string {
	return utils.ToJson(this_)
}

// ServerConfig 构造服务端 tls.Config
func (this_ *TlsConfig) ServerConfig() (*tls.Config, error) {
	cert, err := this_.loadCertificate()
	if err != nil {
		return nil, err
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if this_.VerifyClient {
		pool, err := this_.caPool()
		if err != nil {
			return nil, err
		}

		cfg.ClientAuth = tls.RequireAndVerifyClientCert
		cfg.ClientCAs = pool
	}

	return cfg, nil
}

// ClientConfig 构造客户端 tls.Config
//   - 默认按连接端点校验主机名
func (this_ *TlsConfig) ClientConfig(ep Endpoint) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: this_.InsecureSkipVerify,
	}

	serverName := this_.ServerName
	if len(serverName) == 0 {
		serverName = ep.Addr()
	}
	cfg.ServerName = serverName

	if len(this_.CaFile) > 0 || len(this_.CaPath) > 0 {
		pool, err := this_.caPool()
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}

	if len(this_.CertFile) > 0 && len(this_.KeyFile) > 0 {
		cert, err := this_.loadCertificate()
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

// loadCertificate 加载证书链与私钥
//   - 私钥带口令时先解密 (传统 PEM 加密)
func (this_ *TlsConfig) loadCertificate() (tls.Certificate, error) {
	if len(this_.CertFile) == 0 || len(this_.KeyFile) == 0 {
		return tls.Certificate{}, ErrTlsConfigNil
	}

	certPEM, err := os.ReadFile(this_.CertFile)
	if err != nil {
		return tls.Certificate{}, err
	}

	keyPEM, err := os.ReadFile(this_.KeyFile)
	if err != nil {
		return tls.Certificate{}, err
	}

	if len(this_.Passphrase) > 0 {
		keyPEM, err = decryptKeyPEM(keyPEM, this_.Passphrase)
		if err != nil {
			return tls.Certificate{}, err
		}
	}

	return tls.X509KeyPair(certPEM, keyPEM)
}

// caPool 加载 CA 证书池
func (this_ *TlsConfig) caPool() (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	loaded := false

	if len(this_.CaFile) > 0 {
		data, err := os.ReadFile(this_.CaFile)
		if err != nil {
			return nil, err
		}

		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("no certificates in %v", this_.CaFile)
		}
		loaded = true
	}

	if len(this_.CaPath) > 0 {
		entries, err := os.ReadDir(this_.CaPath)
		if err != nil {
			return nil, err
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}

			ext := filepath.Ext(entry.Name())
			if ext != ".pem" && ext != ".crt" {
				continue
			}

			data, err := os.ReadFile(filepath.Join(this_.CaPath, entry.Name()))
			if err != nil {
				return nil, err
			}

			if pool.AppendCertsFromPEM(data) {
				loaded = true
			}
		}
	}

	if !loaded {
		return nil, errors.New("ca pool is empty")
	}

	return pool, nil
}

func decryptKeyPEM(keyPEM []byte, passphrase string) ([]byte, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("key file is not PEM")
	}

	//lint:ignore SA1019 传统 PEM 加密私钥仍需支持
	if !x509.IsEncryptedPEMBlock(block) {
		return keyPEM, nil
	}

	//lint:ignore SA1019 同上
	der, err := x509.DecryptPEMBlock(block, []byte(passphrase))
	if err != nil {
		return nil, err
	}

	return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
}
