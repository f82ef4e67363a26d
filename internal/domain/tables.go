package domain

var Tables = []interface{}{
	&Customer{},
	&Order{},
	&Item{},
	&Review{},
}
