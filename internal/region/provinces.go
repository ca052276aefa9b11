package region

// Provinces is the fixed list of the 63 administrative regions tracked by the
// pipeline. Names are stable identifiers; the registry resolves each to
// coordinates exactly once.
var Provinces = []string{
	"An Giang", "Bắc Giang", "Bắc Kạn", "Bạc Liêu", "Bắc Ninh", "Bến Tre", "Bình Định",
	"Bình Dương", "Bình Thuận", "Bình Phước", "Cà Mau", "Cần Thơ", "Cao Bằng", "Đà Nẵng",
	"Đắk Lắk", "Đắk Nông", "Điện Biên", "Đồng Nai", "Đồng Tháp", "Gia Lai", "Hà Giang",
	"Hà Nam", "Hà Nội", "Hà Tĩnh", "Hải Dương", "Hải Phòng", "Hậu Giang", "Hoà Bình",
	"Thừa Thiên Huế", "Hưng Yên", "Khánh Hoà", "Kiên Giang", "Kon Tum", "Lai Châu",
	"Lâm Đồng", "Lạng Sơn", "Lào Cai", "Long An", "Nam Định", "Nghệ An", "Ninh Bình",
	"Ninh Thuận", "Phú Thọ", "Phú Yên", "Quảng Bình", "Quảng Nam", "Quảng Ngãi",
	"Quảng Ninh", "Quảng Trị", "Sóc Trăng", "Sơn La", "Tây Ninh", "Thái Bình",
	"Thái Nguyên", "Thanh Hoá", "Tiền Giang", "Hồ Chí Minh", "Trà Vinh",
	"Tuyên Quang", "Vĩnh Long", "Vĩnh Phúc", "Bà Rịa - Vũng Tàu", "Yên Bái",
}
