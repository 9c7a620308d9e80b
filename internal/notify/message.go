package notify

import (
	"html"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tbourn/luvia-backend/internal/domain"
)

var vnd = message.NewPrinter(language.Vietnamese)

// FormatVND renders amount with Vietnamese digit grouping and the đ suffix,
// e.g. 1500000 -> "1.500.000đ".
func FormatVND(amount int64) string {
	return vnd.Sprintf("%d", amount) + "đ"
}

// PaymentMessage composes the "payment received" message for b in Telegram
// HTML. Every interpolated value is escaped.
func PaymentMessage(b domain.Booking) string {
	price := strings.TrimSpace(b.PackagePrice)
	if b.Amount > 0 {
		price = FormatVND(b.Amount)
	}
	service := b.ServiceName
	if p := strings.TrimSpace(b.PackageName); p != "" {
		service += " - " + p
	}

	var sb strings.Builder
	sb.WriteString("✅ <b>Thanh toán thành công!</b>\n")
	sb.WriteString("-------------------------\n")
	sb.WriteString("Mã đơn: <b>" + html.EscapeString(strings.TrimSpace(b.BookingCode)) + "</b>\n")
	sb.WriteString("Khách hàng: " + html.EscapeString(b.CustomerName) + "\n")
	sb.WriteString("SĐT: " + html.EscapeString(b.CustomerPhone) + "\n")
	sb.WriteString("Dịch vụ: " + html.EscapeString(service) + "\n")
	sb.WriteString("Số tiền: " + html.EscapeString(price) + "\n")
	sb.WriteString("-------------------------\n")
	sb.WriteString("<i>Đã cập nhật trạng thái trên hệ thống.</i>")
	return sb.String()
}
