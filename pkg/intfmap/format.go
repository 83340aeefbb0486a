package intfmap

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// FormatOutbound renders the UDP->CAN direction as "ip:port-->can".
func FormatOutbound(e Entry) string {
	return fmt.Sprintf("%s:%d-->%s", e.ToCAN.IP, e.ToCAN.Port, e.ToCAN.CANInterfaceID)
}

// FormatInbound renders the CAN->UDP direction as "ip:port<--can".
func FormatInbound(e Entry) string {
	return fmt.Sprintf("%s:%d<--%s", e.FromCAN.IP, e.FromCAN.Port, e.FromCAN.CANInterfaceID)
}

// Label stores the rendered labels on every entry.
func Label(t Table) {
	for i := range t {
		t[i].ToCAN.Label = FormatOutbound(t[i])
		t[i].FromCAN.Label = FormatInbound(t[i])
	}
}

// LogTable dumps both directions of the table at debug level.
func LogTable(logger *logrus.Entry, t Table) {
	for _, e := range t {
		logger.WithField("needsMutex", e.ToCAN.NeedsMutex).Debugf("udp-->can    %s", FormatOutbound(e))
	}
	for _, e := range t {
		logger.WithField("needsMutex", e.FromCAN.NeedsMutex).Debugf("can-->udp    %s", FormatInbound(e))
	}
}
