package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"switchmonitor/internal/config"
)

// SNMP performs an SNMPv3 GET of a single OID; any valid answer means up.
type SNMP struct {
	port     uint16
	timeout  time.Duration
	retries  int
	oid      string
	flags    gosnmp.SnmpV3MsgFlags
	security gosnmp.UsmSecurityParameters
}

// NewSNMP validates credentials and protocols up front so a bad
// configuration fails at startup rather than on every probe.
func NewSNMP(cfg config.SNMP, timeout time.Duration) (*SNMP, error) {
	if cfg.User == "" {
		return nil, fmt.Errorf("snmp user is required")
	}
	flags, err := msgFlags(cfg.SecurityLevel)
	if err != nil {
		return nil, err
	}

	sec := gosnmp.UsmSecurityParameters{
		UserName:               cfg.User,
		AuthenticationProtocol: gosnmp.NoAuth,
		PrivacyProtocol:        gosnmp.NoPriv,
	}
	if flags != gosnmp.NoAuthNoPriv {
		if sec.AuthenticationProtocol, err = authProtocol(cfg.AuthProtocol); err != nil {
			return nil, err
		}
		sec.AuthenticationPassphrase = cfg.AuthKey
	}
	if flags == gosnmp.AuthPriv {
		if sec.PrivacyProtocol, err = privProtocol(cfg.PrivProtocol); err != nil {
			return nil, err
		}
		sec.PrivacyPassphrase = cfg.PrivKey
	}

	port := cfg.Port
	if port <= 0 {
		port = 161
	}
	oid := cfg.OID
	if oid == "" {
		oid = config.DefaultSNMPOID
	}

	return &SNMP{
		port:     uint16(port),
		timeout:  timeout,
		retries:  cfg.Retries,
		oid:      oid,
		flags:    flags,
		security: sec,
	}, nil
}

// Probe implements Prober.
func (p *SNMP) Probe(ctx context.Context, ip string) bool {
	sec := p.security
	g := &gosnmp.GoSNMP{
		Target:             ip,
		Port:               p.port,
		Transport:          "udp",
		Version:            gosnmp.Version3,
		Timeout:            p.timeout,
		Retries:            p.retries,
		Context:            ctx,
		SecurityModel:      gosnmp.UserSecurityModel,
		MsgFlags:           p.flags,
		SecurityParameters: &sec,
	}
	if err := g.Connect(); err != nil {
		return false
	}
	defer g.Conn.Close()

	res, err := g.Get([]string{p.oid})
	if err != nil || res == nil || res.Error != gosnmp.NoError {
		return false
	}
	if len(res.Variables) == 0 {
		return false
	}
	for _, v := range res.Variables {
		switch v.Type {
		case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
			return false
		}
	}
	return true
}

func msgFlags(level string) (gosnmp.SnmpV3MsgFlags, error) {
	switch strings.ToLower(level) {
	case "noauthnopriv":
		return gosnmp.NoAuthNoPriv, nil
	case "authnopriv":
		return gosnmp.AuthNoPriv, nil
	case "", "authpriv":
		return gosnmp.AuthPriv, nil
	default:
		return 0, fmt.Errorf("unknown snmp security level %q", level)
	}
}

func authProtocol(name string) (gosnmp.SnmpV3AuthProtocol, error) {
	switch strings.ToUpper(name) {
	case "MD5":
		return gosnmp.MD5, nil
	case "", "SHA":
		return gosnmp.SHA, nil
	case "SHA224":
		return gosnmp.SHA224, nil
	case "SHA256":
		return gosnmp.SHA256, nil
	case "SHA384":
		return gosnmp.SHA384, nil
	case "SHA512":
		return gosnmp.SHA512, nil
	default:
		return 0, fmt.Errorf("unknown snmp auth protocol %q", name)
	}
}

func privProtocol(name string) (gosnmp.SnmpV3PrivProtocol, error) {
	switch strings.ToUpper(name) {
	case "DES":
		return gosnmp.DES, nil
	case "", "AES":
		return gosnmp.AES, nil
	case "AES192":
		return gosnmp.AES192, nil
	case "AES256":
		return gosnmp.AES256, nil
	case "AES192C":
		return gosnmp.AES192C, nil
	case "AES256C":
		return gosnmp.AES256C, nil
	default:
		return 0, fmt.Errorf("unknown snmp privacy protocol %q", name)
	}
}
